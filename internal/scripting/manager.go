package scripting

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/rollbox/internal/dice"
)

// ErrHookFailed wraps a Lua runtime error raised by a hook.
var ErrHookFailed = errors.New("scripting: hook failed")

// vm is one loaded script set. LState is single-threaded, so calls hold mu.
type vm struct {
	mu    sync.Mutex
	L     *lua.LState
	limit int
}

// Manager owns named sandboxed VMs and dispatches hook calls into them.
// It is safe for concurrent use.
type Manager struct {
	mu     sync.RWMutex
	vms    map[string]*vm
	engine *dice.Engine
	logger *zap.Logger
}

// NewManager creates a Manager whose scripts roll through engine.
//
// Precondition: engine and logger must be non-nil.
func NewManager(engine *dice.Engine, logger *zap.Logger) *Manager {
	if engine == nil {
		panic("scripting.NewManager: engine must not be nil")
	}
	if logger == nil {
		panic("scripting.NewManager: logger must not be nil")
	}
	return &Manager{
		vms:    make(map[string]*vm),
		engine: engine,
		logger: logger,
	}
}

// Load creates a VM under name, registers the engine.* modules and executes
// every *.lua file in dir in lexicographic order. A VM already registered
// under name is replaced and closed.
//
// Precondition: name must be non-empty; dir must be a readable directory;
// instLimit >= 0, where 0 means DefaultInstructionLimit.
func (m *Manager) Load(name, dir string, instLimit int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q for %q: %w", dir, name, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	L := NewSandboxedState()
	m.RegisterModules(L)
	v := &vm{L: L, limit: instLimit}

	for _, path := range files {
		err := runBudgeted(context.Background(), L, instLimit, func() error { return L.DoFile(path) })
		if err != nil {
			L.Close()
			return fmt.Errorf("scripting: loading %q for %q: %w", path, name, err)
		}
	}

	m.mu.Lock()
	old := m.vms[name]
	m.vms[name] = v
	m.mu.Unlock()
	if old != nil {
		old.mu.Lock()
		old.L.Close()
		old.mu.Unlock()
	}

	m.logger.Info("scripts loaded", zap.String("vm", name), zap.Int("files", len(files)))
	return nil
}

// HasHook reports whether the VM name defines a global function hook.
func (m *Manager) HasHook(name, hook string) bool {
	v := m.lookup(name)
	if v == nil {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.L.GetGlobal(hook).(*lua.LFunction)
	return ok
}

// CallHook calls the global function hook in VM name with args under the
// VM's instruction budget and ctx. It returns (LNil, nil) when the VM or the
// hook does not exist. Lua runtime errors, including an exhausted budget,
// are logged at warn level and returned wrapped in ErrHookFailed.
//
// Postcondition: Returns the hook's first return value, or LNil.
func (m *Manager) CallHook(ctx context.Context, name, hook string, args ...lua.LValue) (lua.LValue, error) {
	v := m.lookup(name)
	if v == nil {
		m.logger.Debug("scripting: no VM", zap.String("vm", name), zap.String("hook", hook))
		return lua.LNil, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	fn, ok := v.L.GetGlobal(hook).(*lua.LFunction)
	if !ok {
		return lua.LNil, nil
	}

	err := runBudgeted(ctx, v.L, v.limit, func() error {
		return v.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...)
	})
	if err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("vm", name),
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil, fmt.Errorf("%w: %s: %w", ErrHookFailed, hook, err)
	}

	ret := v.L.Get(-1)
	v.L.Pop(1)
	return ret, nil
}

// Close closes every VM.
func (m *Manager) Close() {
	m.mu.Lock()
	vms := m.vms
	m.vms = make(map[string]*vm)
	m.mu.Unlock()
	for _, v := range vms {
		v.mu.Lock()
		v.L.Close()
		v.mu.Unlock()
	}
}

func (m *Manager) lookup(name string) *vm {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vms[name]
}
