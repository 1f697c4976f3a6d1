// Package handlers implements the Telnet dice console: the command loop that
// validates, rolls and scans expressions for a connected client.
package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/rollbox/internal/dice"
	"github.com/cory-johannsen/rollbox/internal/frontend/telnet"
	"github.com/cory-johannsen/rollbox/internal/history"
	"github.com/cory-johannsen/rollbox/internal/preset"
)

// ScriptVM is the scripting VM consulted for unknown commands.
const ScriptVM = "commands"

// DefaultHistoryLines is how many rolls "history" shows without an argument.
const DefaultHistoryLines = 10

// ScriptHost runs Lua command hooks.
type ScriptHost interface {
	HasHook(name, hook string) bool
	CallHook(ctx context.Context, name, hook string, args ...lua.LValue) (lua.LValue, error)
}

// Options carries the optional collaborators of a DiceHandler.
type Options struct {
	// Presets may be nil.
	Presets *preset.Registry
	// Scripts may be nil; then unknown commands are simply rejected.
	Scripts ScriptHost
	// RestrictAdvantage refuses advantage/disadvantage on d20-led expressions.
	RestrictAdvantage bool
}

const welcomeBanner = "\r\n" + telnet.Bold + telnet.Cyan + "  rollbox" + telnet.Reset +
	telnet.Dim + " dice console" + telnet.Reset + "\r\n\r\n" +
	"  Type " + telnet.Green + "roll 2d6+3" + telnet.Reset + " to roll, " +
	telnet.Green + "help" + telnet.Reset + " for commands, " +
	telnet.Green + "quit" + telnet.Reset + " to disconnect.\r\n\r\n"

// DiceHandler implements telnet.SessionHandler.
type DiceHandler struct {
	engine  *dice.Engine
	history history.Store
	opts    Options
	logger  *zap.Logger
}

// NewDiceHandler creates a DiceHandler.
//
// Precondition: engine, store and logger must be non-nil.
func NewDiceHandler(engine *dice.Engine, store history.Store, logger *zap.Logger, opts Options) *DiceHandler {
	return &DiceHandler{engine: engine, history: store, opts: opts, logger: logger}
}

// session is the per-connection state of the command loop.
type session struct {
	conn *telnet.Conn
	log  *zap.Logger
}

// HandleSession runs the command loop until quit, disconnect or ctx is done.
//
// Postcondition: Returns nil on quit, or the error that ended the session.
func (h *DiceHandler) HandleSession(ctx context.Context, conn *telnet.Conn) error {
	start := time.Now()
	s := &session{conn: conn, log: h.logger.With(zap.String("session", conn.ID()))}

	if err := conn.Write([]byte(welcomeBanner)); err != nil {
		return fmt.Errorf("sending welcome: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteLine(telnet.Colorize(telnet.Yellow, "Server shutting down. Goodbye!"))
			return ctx.Err()
		default:
		}

		if err := conn.WritePrompt(telnet.Colorize(telnet.BrightWhite, "> ")); err != nil {
			return fmt.Errorf("writing prompt: %w", err)
		}
		line, err := conn.ReadLine()
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		quit, err := h.dispatch(ctx, s, line)
		if err != nil {
			return err
		}
		if quit {
			s.log.Info("client quit", zap.Duration("session_duration", time.Since(start)))
			return nil
		}
	}
}

// dispatch runs one command line. It reports whether the session should end;
// a non-nil error means the connection is unusable.
func (h *DiceHandler) dispatch(ctx context.Context, s *session, line string) (bool, error) {
	cmd, rest, _ := strings.Cut(line, " ")
	cmd = strings.ToLower(cmd)
	rest = strings.TrimSpace(rest)

	var out []string
	switch cmd {
	case "quit", "exit":
		return true, s.conn.WriteLine(telnet.Colorize(telnet.Cyan, "Goodbye!"))
	case "help", "?":
		out = helpLines()
	case "roll", "r":
		out = h.handleRoll(ctx, s, rest)
	case "adv", "dis", "crit":
		if rest == "" {
			out = []string{usage(cmd + " <expression>")}
			break
		}
		rollType, _ := dice.ParseRollType(cmd)
		out = h.rollText(ctx, s, rest, rollType)
	case "check":
		out = h.handleCheck(rest)
	case "scan":
		out = h.handleScan(ctx, s, rest)
	case "preset", "presets":
		out = h.handlePreset(ctx, s, rest)
	case "history":
		out = h.handleHistory(ctx, s, rest)
	case "clear":
		out = h.handleClear(ctx, s)
	case "color", "colour":
		out = handleColor(s, rest)
	default:
		out = h.handleOther(ctx, s, line, cmd, rest)
	}
	return false, s.conn.WriteLines(out...)
}

func (h *DiceHandler) handleRoll(ctx context.Context, s *session, args string) []string {
	if args == "" {
		return []string{usage("roll <expression> [normal|adv|dis|crit]")}
	}
	rollType := dice.Normal
	fields := strings.Fields(args)
	if len(fields) > 1 {
		last := fields[len(fields)-1]
		if rt, err := dice.ParseRollType(last); err == nil {
			rollType = rt
			args = strings.TrimSpace(strings.TrimSuffix(args, last))
		}
	}
	return h.rollText(ctx, s, args, rollType)
}

// rollText validates, checks eligibility, rolls and records one expression.
func (h *DiceHandler) rollText(ctx context.Context, s *session, text string, rollType dice.RollType) []string {
	result, err := h.roll(ctx, s, text, rollType)
	if err != nil {
		return []string{RenderError(err)}
	}
	return RenderRoll(result)
}

func (h *DiceHandler) roll(ctx context.Context, s *session, text string, rollType dice.RollType) (dice.RollResult, error) {
	expr, err := h.engine.Validate(text)
	if err != nil {
		return dice.RollResult{}, err
	}
	if err := h.eligible(expr, rollType); err != nil {
		return dice.RollResult{}, err
	}
	result, err := h.engine.Roll(expr, rollType)
	if err != nil {
		return dice.RollResult{}, err
	}
	if err := h.history.Add(ctx, history.NewEntry(s.conn.ID(), result)); err != nil {
		s.log.Warn("recording roll history", zap.Error(err))
	}
	return result, nil
}

func (h *DiceHandler) eligible(expr dice.Expression, rollType dice.RollType) error {
	if !h.opts.RestrictAdvantage {
		return nil
	}
	return dice.CheckAdvantage(expr, rollType)
}

func (h *DiceHandler) handleCheck(args string) []string {
	if args == "" {
		return []string{usage("check <expression>")}
	}
	expr, err := h.engine.Validate(args)
	if err != nil {
		return []string{RenderError(err)}
	}
	return []string{RenderCheck(expr)}
}

// handleScan highlights each expression in free text and rolls the valid ones.
func (h *DiceHandler) handleScan(ctx context.Context, s *session, text string) []string {
	if text == "" {
		return []string{usage("scan <text>")}
	}
	spans := h.engine.ScanSpans(text)
	if len(spans) == 0 {
		return []string{telnet.Colorize(telnet.Dim, "No dice expressions found.")}
	}
	out := []string{RenderScan(text, spans)}
	for _, sp := range spans {
		result, err := h.roll(ctx, s, sp.Text, dice.Normal)
		if err != nil {
			out = append(out, "  "+sp.Text+": "+RenderError(err))
			continue
		}
		out = append(out, "  "+RenderSummary(result))
	}
	return out
}

func (h *DiceHandler) handlePreset(ctx context.Context, s *session, name string) []string {
	if name == "" {
		return RenderPresets(h.opts.Presets)
	}
	if h.opts.Presets == nil {
		return []string{telnet.Colorize(telnet.Red, "No presets are configured.")}
	}
	p, ok := h.opts.Presets.Get(name)
	if !ok {
		return []string{telnet.Colorf(telnet.Red, "Unknown preset %q. Type 'preset' to list them.", name)}
	}
	if err := h.eligible(p.Expression, p.RollType); err != nil {
		return []string{RenderError(err)}
	}
	result, err := h.engine.Roll(p.Expression, p.RollType)
	if err != nil {
		return []string{RenderError(err)}
	}
	if err := h.history.Add(ctx, history.NewEntry(s.conn.ID(), result)); err != nil {
		s.log.Warn("recording roll history", zap.Error(err))
	}
	return append([]string{telnet.Colorize(telnet.Dim, p.Name+": "+p.Description)}, RenderRoll(result)...)
}

func (h *DiceHandler) handleHistory(ctx context.Context, s *session, arg string) []string {
	limit := DefaultHistoryLines
	if arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			return []string{usage("history [count]")}
		}
		limit = n
	}
	entries, err := h.history.List(ctx, s.conn.ID(), limit)
	if err != nil {
		s.log.Error("listing roll history", zap.Error(err))
		return []string{telnet.Colorize(telnet.Red, "History is unavailable right now.")}
	}
	return RenderHistory(entries)
}

func (h *DiceHandler) handleClear(ctx context.Context, s *session) []string {
	if err := h.history.Clear(ctx, s.conn.ID()); err != nil {
		s.log.Error("clearing roll history", zap.Error(err))
		return []string{telnet.Colorize(telnet.Red, "History is unavailable right now.")}
	}
	return []string{telnet.Colorize(telnet.Cyan, "History cleared.")}
}

func handleColor(s *session, arg string) []string {
	switch strings.ToLower(arg) {
	case "on":
		s.conn.SetColor(true)
		return []string{telnet.Colorize(telnet.Green, "Colour on.")}
	case "off":
		s.conn.SetColor(false)
		return []string{"Colour off."}
	default:
		return []string{usage("color on|off")}
	}
}

// handleOther rolls a bare expression, then tries a Lua cmd_<word> hook.
func (h *DiceHandler) handleOther(ctx context.Context, s *session, line, cmd, rest string) []string {
	if h.engine.IsExpression(line) {
		return h.rollText(ctx, s, line, dice.Normal)
	}
	hook := "cmd_" + cmd
	if h.opts.Scripts != nil && h.opts.Scripts.HasHook(ScriptVM, hook) {
		ret, err := h.opts.Scripts.CallHook(ctx, ScriptVM, hook, lua.LString(s.conn.ID()), lua.LString(rest))
		if err != nil {
			return []string{telnet.Colorf(telnet.Red, "Command %q failed.", cmd)}
		}
		if ret == lua.LNil {
			return nil
		}
		return strings.Split(ret.String(), "\n")
	}
	return []string{telnet.Colorf(telnet.Red, "Unknown command: %s. Type 'help' for available commands.", cmd)}
}

func usage(text string) string {
	return telnet.Colorize(telnet.Yellow, "Usage: "+text)
}

func helpLines() []string {
	cmds := [][2]string{
		{"roll <expr> [type]", "roll an expression; type is normal, adv, dis or crit"},
		{"adv|dis|crit <expr>", "roll with advantage, disadvantage or as a critical"},
		{"<expr>", "a bare expression rolls normally"},
		{"check <expr>", "validate an expression without rolling"},
		{"scan <text>", "find and roll every expression in free text"},
		{"preset [name]", "list presets or roll one"},
		{"history [n]", "show your last n rolls"},
		{"clear", "forget your roll history"},
		{"color on|off", "toggle ANSI colour"},
		{"quit", "disconnect"},
	}
	lines := []string{telnet.Colorize(telnet.Cyan, "Commands:")}
	for _, c := range cmds {
		lines = append(lines, fmt.Sprintf("  %s%-22s%s %s", telnet.Green, c[0], telnet.Reset, c[1]))
	}
	return lines
}
