package combat

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

const (
	// EngageScope is the script scope holding the engagement hook.
	EngageScope = "engage"
	// EngageHook is the Lua global consulted by ScriptedPolicy:
	//
	//	should_engage(self_dps, enemy_dps, self_health, enemy_health, dps_ratio, health_ratio) -> bool
	EngageHook = "should_engage"
)

// ScriptCaller is the interface required by ScriptedPolicy to call Lua hooks.
type ScriptCaller interface {
	// CallHook calls a named Lua function in the given scope's VM.
	// Returns (LNil, nil) if the function is not defined.
	CallHook(scope, hook string, args ...lua.LValue) (lua.LValue, error)
}

// ScriptedPolicy lets a Lua hook override the engage verdict. A missing hook,
// a non-boolean result or a call error defers to the fallback policy.
type ScriptedPolicy struct {
	caller   ScriptCaller
	fallback Policy
	logger   *zap.Logger
}

// NewScriptedPolicy constructs a ScriptedPolicy.
//
// Precondition: caller, fallback and logger must not be nil.
func NewScriptedPolicy(caller ScriptCaller, fallback Policy, logger *zap.Logger) *ScriptedPolicy {
	if caller == nil {
		panic("combat.NewScriptedPolicy: caller must not be nil")
	}
	if fallback == nil {
		panic("combat.NewScriptedPolicy: fallback must not be nil")
	}
	if logger == nil {
		panic("combat.NewScriptedPolicy: logger must not be nil")
	}
	return &ScriptedPolicy{caller: caller, fallback: fallback, logger: logger}
}

// Engage implements Policy.
func (p *ScriptedPolicy) Engage(a Assessment) bool {
	ret, err := p.caller.CallHook(EngageScope, EngageHook,
		lua.LNumber(a.SelfDPS),
		lua.LNumber(a.EnemyDPS),
		lua.LNumber(a.SelfHealth),
		lua.LNumber(a.EnemyHealth),
		lua.LNumber(a.DPSRatio),
		lua.LNumber(a.HealthRatio),
	)
	if err != nil {
		p.logger.Warn("engage hook failed", zap.Error(err))
		return p.fallback.Engage(a)
	}
	if b, ok := ret.(lua.LBool); ok {
		return bool(b)
	}
	return p.fallback.Engage(a)
}
