package scripting

import (
	"math"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RegisterModules registers the engine.* Lua table into L:
//
//	engine.log.debug(msg) / engine.log.info(msg) / engine.log.warn(msg)
//	engine.inf            positive infinity, as produced by unopposed ratios
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: engine global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	engine := L.NewTable()

	logTbl := L.NewTable()
	L.SetField(logTbl, "debug", L.NewFunction(m.luaLog(zap.DebugLevel)))
	L.SetField(logTbl, "info", L.NewFunction(m.luaLog(zap.InfoLevel)))
	L.SetField(logTbl, "warn", L.NewFunction(m.luaLog(zap.WarnLevel)))
	L.SetField(engine, "log", logTbl)

	L.SetField(engine, "inf", lua.LNumber(math.Inf(1)))

	L.SetGlobal("engine", engine)
}

func (m *Manager) luaLog(level zapcore.Level) lua.LGFunction {
	return func(L *lua.LState) int {
		msg := L.CheckString(1)
		if ce := m.logger.Check(level, msg); ce != nil {
			ce.Write(zap.String("source", "lua"))
		}
		return 0
	}
}
