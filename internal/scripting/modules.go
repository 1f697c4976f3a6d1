package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/rollbox/internal/dice"
)

// RegisterModules installs the engine table into L:
//
//	engine.dice.roll(expr [, type]) -> result table; raises on bad notation
//	engine.dice.valid(expr)         -> boolean
//	engine.dice.scan(text)          -> array of candidate strings
//	engine.log.debug|info|warn|error(msg)
func (m *Manager) RegisterModules(L *lua.LState) {
	engine := L.NewTable()

	diceMod := L.NewTable()
	L.SetField(diceMod, "roll", L.NewFunction(m.luaRoll))
	L.SetField(diceMod, "valid", L.NewFunction(m.luaValid))
	L.SetField(diceMod, "scan", L.NewFunction(m.luaScan))
	L.SetField(engine, "dice", diceMod)

	logMod := L.NewTable()
	L.SetField(logMod, "debug", L.NewFunction(m.luaLog(m.logger.Debug)))
	L.SetField(logMod, "info", L.NewFunction(m.luaLog(m.logger.Info)))
	L.SetField(logMod, "warn", L.NewFunction(m.luaLog(m.logger.Warn)))
	L.SetField(logMod, "error", L.NewFunction(m.luaLog(m.logger.Error)))
	L.SetField(engine, "log", logMod)

	L.SetGlobal("engine", engine)
}

func (m *Manager) luaRoll(L *lua.LState) int {
	text := L.CheckString(1)
	rollType, err := dice.ParseRollType(L.OptString(2, ""))
	if err != nil {
		L.ArgError(2, err.Error())
		return 0
	}
	result, err := m.engine.RollText(text, rollType)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	L.Push(ResultTable(L, result))
	return 1
}

func (m *Manager) luaValid(L *lua.LState) int {
	L.Push(lua.LBool(m.engine.IsExpression(L.CheckString(1))))
	return 1
}

func (m *Manager) luaScan(L *lua.LState) int {
	found := m.engine.Scan(L.CheckString(1))
	t := L.CreateTable(len(found), 0)
	for _, s := range found {
		t.Append(lua.LString(s))
	}
	L.Push(t)
	return 1
}

func (m *Manager) luaLog(logFn func(string, ...zap.Field)) lua.LGFunction {
	return func(L *lua.LState) int {
		logFn(L.CheckString(1), zap.String("source", "lua"))
		return 0
	}
}

// ResultTable converts r into the Lua table shape returned by engine.dice.roll.
func ResultTable(L *lua.LState, r dice.RollResult) *lua.LTable {
	t := L.NewTable()
	L.SetField(t, "expression", lua.LString(r.Expression.Raw))
	L.SetField(t, "type", lua.LString(r.Type.String()))
	L.SetField(t, "total", lua.LNumber(r.Total))
	L.SetField(t, "modifier", lua.LNumber(r.Modifier))

	breakdown := L.CreateTable(len(r.Breakdown), 0)
	for _, e := range r.Breakdown {
		line := L.NewTable()
		L.SetField(line, "label", lua.LString(e.Label()))
		values := L.CreateTable(len(e.Values()), 0)
		for _, v := range e.Values() {
			values.Append(lua.LNumber(v))
		}
		L.SetField(line, "values", values)
		L.SetField(line, "subtotal", lua.LNumber(e.Subtotal()))
		breakdown.Append(line)
	}
	L.SetField(t, "breakdown", breakdown)
	return t
}
