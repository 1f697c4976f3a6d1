package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cory-johannsen/rollbox/internal/dice"
	"github.com/cory-johannsen/rollbox/internal/frontend/telnet"
	"github.com/cory-johannsen/rollbox/internal/history"
	"github.com/cory-johannsen/rollbox/internal/preset"
)

// labelWidth pads breakdown labels so values line up.
const labelWidth = 14

// RenderDie colours an extremal face: 1 red, maximum green. Other faces are
// plain.
func RenderDie(d dice.SingleDieRoll) string {
	s := strconv.Itoa(d.Value)
	switch {
	case !d.Extremal:
		return s
	case d.Value == 1:
		return telnet.Colorize(telnet.Red, s)
	default:
		return telnet.Colorize(telnet.Green, s)
	}
}

// RenderRoll formats a roll result as a multi-line breakdown:
//
//	2d6+3 (advantage)
//	  2d6            [4 5]  = 9
//	  advantage      [2 6]  = 6
//	  modifier              +3
//	  total                 = 18
func RenderRoll(r dice.RollResult) []string {
	header := telnet.Colorize(telnet.Bold, r.Expression.Raw)
	if r.Type != dice.Normal {
		header += " " + telnet.Colorf(telnet.Cyan, "(%s)", r.Type)
	}
	lines := []string{header}
	for _, e := range r.Breakdown {
		rolls := e.Rolls()
		faces := make([]string, len(rolls))
		for i, d := range rolls {
			faces[i] = RenderDie(d)
		}
		lines = append(lines, fmt.Sprintf("  %-*s [%s]  = %d",
			labelWidth, e.Label(), strings.Join(faces, " "), e.Subtotal()))
	}
	if r.Modifier != 0 {
		lines = append(lines, fmt.Sprintf("  %-*s %+d", labelWidth, "modifier", r.Modifier))
	}
	lines = append(lines, fmt.Sprintf("  %-*s %s", labelWidth, "total",
		telnet.Colorf(telnet.Bold+telnet.BrightWhite, "= %d", r.Total)))
	return lines
}

// RenderCheck describes a validated expression.
func RenderCheck(expr dice.Expression) string {
	groups := expr.Groups()
	labels := make([]string, len(groups))
	for i, g := range groups {
		labels[i] = g.String()
	}
	return telnet.Colorf(telnet.Green, "%s is valid", expr.Raw) +
		fmt.Sprintf(": groups %s, modifier %+d, %d dice (canonical %s)",
			strings.Join(labels, ", "), expr.Modifier, expr.DiceCount(), expr.Canonical())
}

// RenderError formats an error for the player. RNG failures are reported
// generically; other messages are shown without their "dice: " prefix.
func RenderError(err error) string {
	var verr *dice.ValidationError
	switch {
	case errors.As(err, &verr):
		return telnet.Colorize(telnet.Red, strings.TrimPrefix(verr.Error(), "dice: "))
	case errors.Is(err, dice.ErrRngFailure):
		return telnet.Colorize(telnet.Red, "The dice could not be rolled. Please try again.")
	default:
		return telnet.Colorize(telnet.Red, strings.TrimPrefix(err.Error(), "dice: "))
	}
}

// RenderScan highlights every located span in text.
func RenderScan(text string, spans []dice.Span) string {
	var b strings.Builder
	prev := 0
	for _, s := range spans {
		b.WriteString(text[prev:s.Start])
		b.WriteString(telnet.Colorize(telnet.Yellow+telnet.Bold, s.Text))
		prev = s.End
	}
	b.WriteString(text[prev:])
	return b.String()
}

// RenderSummary is the one-line form used by scan results and history.
func RenderSummary(r dice.RollResult) string {
	parts := make([]string, 0, len(r.Breakdown))
	for _, e := range r.Breakdown {
		rolls := e.Rolls()
		faces := make([]string, len(rolls))
		for i, d := range rolls {
			faces[i] = RenderDie(d)
		}
		parts = append(parts, fmt.Sprintf("%s[%s]", e.Label(), strings.Join(faces, " ")))
	}
	return fmt.Sprintf("%s → %s %+d = %s", r.Expression.Raw, strings.Join(parts, " "), r.Modifier,
		telnet.Colorf(telnet.Bold, "%d", r.Total))
}

// RenderHistory lists stored rolls, newest first.
func RenderHistory(entries []history.Entry) []string {
	if len(entries) == 0 {
		return []string{telnet.Colorize(telnet.Dim, "No rolls yet.")}
	}
	lines := make([]string, 0, len(entries))
	for i, e := range entries {
		kind := ""
		if e.RollType != dice.Normal.String() {
			kind = " (" + e.RollType + ")"
		}
		lines = append(lines, fmt.Sprintf("%s %s%s = %s  %s",
			telnet.Colorf(telnet.BrightBlack, "%2d.", i+1),
			e.Expression, kind,
			telnet.Colorf(telnet.Bold, "%d", e.Total),
			telnet.Colorize(telnet.Dim, e.RolledAt.Format("15:04:05")),
		))
	}
	return lines
}

// RenderPresets lists the registry contents.
func RenderPresets(r *preset.Registry) []string {
	if r == nil || r.Len() == 0 {
		return []string{telnet.Colorize(telnet.Dim, "No presets are configured.")}
	}
	lines := []string{telnet.Colorize(telnet.Cyan, "Presets:")}
	for _, name := range r.Names() {
		p, _ := r.Get(name)
		kind := ""
		if p.RollType != dice.Normal {
			kind = " (" + p.RollType.String() + ")"
		}
		lines = append(lines, fmt.Sprintf("  %-*s %s%s  %s", labelWidth, name, p.Expression.Raw, kind,
			telnet.Colorize(telnet.Dim, p.Description)))
	}
	return lines
}
