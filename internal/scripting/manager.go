package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// globalScope is the reserved key for shared scripts loaded via LoadGlobal.
// CallHook falls back to this VM when no scope VM is found.
const globalScope = "__global__"

type vm struct {
	L     *lua.LState
	limit int
}

// Manager owns one sandboxed LState per scope and exposes hook dispatch.
//
// Manager is safe for concurrent use; calls into the same VM are serialized.
type Manager struct {
	mu     sync.Mutex
	vms    map[string]*vm
	logger *zap.Logger
}

// NewManager creates a Manager.
//
// Precondition: logger must be non-nil.
// Postcondition: Returns a non-nil Manager with no scopes loaded.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		panic("scripting.NewManager: logger must not be nil")
	}
	return &Manager{
		vms:    make(map[string]*vm),
		logger: logger,
	}
}

// LoadDir creates a sandboxed VM for scope, registers the engine.* modules,
// then executes every *.lua file in scriptDir in lexicographic order.
//
// Precondition: scope must be non-empty; scriptDir must be a readable directory.
// Postcondition: Scope VM is registered; returns error on Lua load failure.
func (m *Manager) LoadDir(scope, scriptDir string, instLimit int) error {
	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q for %q: %w", scriptDir, scope, err)
	}
	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)
	return m.loadInto(scope, luaFiles, instLimit)
}

// LoadFile creates a sandboxed VM for scope from a single Lua file.
//
// Precondition: scope must be non-empty; path must be a readable Lua file.
// Postcondition: Scope VM is registered; returns error on Lua load failure.
func (m *Manager) LoadFile(scope, path string, instLimit int) error {
	return m.loadInto(scope, []string{path}, instLimit)
}

// LoadGlobal creates the shared VM used as a CallHook fallback from any scope.
//
// Precondition: scriptDir must be a readable directory.
// Postcondition: Global VM is registered; returns error on Lua load failure.
func (m *Manager) LoadGlobal(scriptDir string, instLimit int) error {
	return m.LoadDir(globalScope, scriptDir, instLimit)
}

func (m *Manager) loadInto(scope string, files []string, instLimit int) error {
	L, cancel := NewSandboxedState(instLimit)
	m.RegisterModules(L)

	for _, path := range files {
		if err := L.DoFile(path); err != nil {
			cancel()
			L.Close()
			return fmt.Errorf("scripting: loading %q for %q: %w", path, scope, err)
		}
	}
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.vms[scope]; ok {
		old.L.Close()
	}
	m.vms[scope] = &vm{L: L, limit: instLimit}
	return nil
}

// Has reports whether scope, or the global fallback, has a VM.
func (m *Manager) Has(scope string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.vms[scope]
	if !ok {
		_, ok = m.vms[globalScope]
	}
	return ok
}

// CallHook calls the named Lua global function in scope's VM. If the scope has
// no VM, the global VM is tried as a fallback. Returns (LNil, nil) if the hook
// is not defined or no VM exists. Lua runtime errors, instruction budget
// exhaustion included, are logged at Warn level and never propagated.
//
// Each call gets a fresh instruction budget.
//
// Precondition: args must be valid lua.LValue instances.
// Postcondition: Returns the first return value of the hook, or LNil.
func (m *Manager) CallHook(scope, hook string, args ...lua.LValue) (lua.LValue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.vms[scope]
	if !ok {
		v = m.vms[globalScope]
	}
	if v == nil {
		m.logger.Debug("scripting: no VM for scope",
			zap.String("scope", scope),
			zap.String("hook", hook),
		)
		return lua.LNil, nil
	}

	fn := v.L.GetGlobal(hook)
	if fn == lua.LNil {
		return lua.LNil, nil
	}

	cancel := Rearm(v.L, v.limit)
	defer cancel()
	if err := v.L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("scope", scope),
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil, nil
	}

	ret := v.L.Get(-1)
	v.L.Pop(1)
	return ret, nil
}

// Close releases every VM.
//
// Postcondition: All scopes are removed; subsequent CallHook calls return LNil.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for scope, v := range m.vms {
		v.L.Close()
		delete(m.vms, scope)
	}
}
