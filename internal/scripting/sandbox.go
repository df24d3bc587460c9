// Package scripting hosts the sandboxed Lua VMs that may override engine
// policies. It knows nothing about units or combat: callers pass plain Lua
// values in and interpret the returned value themselves.
package scripting

import (
	"context"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// DefaultInstructionLimit is the opcode budget of one hook call when no
// override is configured.
const DefaultInstructionLimit = 100_000

// unsafeGlobals are removed from every sandboxed state.
var unsafeGlobals = []string{"dofile", "loadfile", "load", "collectgarbage", "require"}

// opcodeBudget cancels itself once Done has been polled budget times. The VM
// polls Done once per opcode, so the budget is an exact instruction count.
type opcodeBudget struct {
	context.Context
	left   atomic.Int64
	expire context.CancelFunc
}

func (b *opcodeBudget) Done() <-chan struct{} {
	if b.left.Add(-1) <= 0 {
		b.expire()
	}
	return b.Context.Done()
}

// NewSandboxedState returns a Lua state limited to the base, table, string
// and math libraries, with file loading and the collector removed.
//
// Precondition: instLimit >= 0; 0 uses DefaultInstructionLimit.
// Postcondition: The caller owns L and must Close it; cancel releases the
// current instruction budget.
func NewSandboxedState(instLimit int) (L *lua.LState, cancel context.CancelFunc) {
	L = lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, open := range []lua.LGFunction{lua.OpenBase, lua.OpenTable, lua.OpenString, lua.OpenMath} {
		open(L)
	}
	for _, name := range unsafeGlobals {
		L.SetGlobal(name, lua.LNil)
	}
	return L, Rearm(L, instLimit)
}

// Rearm gives L a fresh budget of instLimit opcodes. The manager rearms before
// every hook call so the limit applies per decision, not per game.
//
// Precondition: instLimit >= 0; 0 uses DefaultInstructionLimit.
func Rearm(L *lua.LState, instLimit int) context.CancelFunc {
	if instLimit <= 0 {
		instLimit = DefaultInstructionLimit
	}
	base, expire := context.WithCancel(context.Background())
	b := &opcodeBudget{Context: base, expire: expire}
	b.left.Store(int64(instLimit))
	L.SetContext(b)
	return expire
}
