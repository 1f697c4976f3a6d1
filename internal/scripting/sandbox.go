// Package scripting hosts sandboxed GopherLua VMs that can define extra
// console commands on top of the dice engine. Scripts reach the engine only
// through the engine.* tables registered by the Manager.
package scripting

import (
	"context"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// DefaultInstructionLimit caps Lua opcodes per hook call when no limit is
// configured.
const DefaultInstructionLimit = 100_000

// budgetContext cancels itself after Done has been called limit times.
// GopherLua's main loop calls Done once per opcode when a context is set.
type budgetContext struct {
	context.Context
	cancel    context.CancelFunc
	remaining atomic.Int64
}

func (c *budgetContext) Done() <-chan struct{} {
	if c.remaining.Add(-1) <= 0 {
		c.cancel()
	}
	return c.Context.Done()
}

// withInstructionBudget derives a context from parent that is also cancelled
// after limit opcodes.
//
// Precondition: limit > 0.
func withInstructionBudget(parent context.Context, limit int) (context.Context, context.CancelFunc) {
	base, cancel := context.WithCancel(parent)
	c := &budgetContext{Context: base, cancel: cancel}
	c.remaining.Store(int64(limit))
	return c, cancel
}

// NewSandboxedState returns an LState with only base, table, string and math
// opened and the file/loader globals removed. The caller must Close it.
func NewSandboxedState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "collectgarbage", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

// runBudgeted runs fn with L bound to a budgeted context and unbinds it
// afterwards so idle VMs hold no context.
func runBudgeted(ctx context.Context, L *lua.LState, limit int, fn func() error) error {
	if limit <= 0 {
		limit = DefaultInstructionLimit
	}
	bctx, cancel := withInstructionBudget(ctx, limit)
	defer cancel()
	L.SetContext(bctx)
	defer L.RemoveContext()
	return fn()
}
