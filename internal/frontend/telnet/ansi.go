// Package telnet serves the line-oriented dice console over Telnet, with
// ANSI colouring for roll output.
package telnet

import "fmt"

// ANSI SGR sequences used by the console renderer.
const (
	Reset = "\033[0m"
	Bold  = "\033[1m"
	Dim   = "\033[2m"

	Red         = "\033[31m"
	Green       = "\033[32m"
	Yellow      = "\033[33m"
	Cyan        = "\033[36m"
	BrightBlack = "\033[90m"
	BrightWhite = "\033[97m"
)

// Colorize wraps text in color and Reset.
func Colorize(color, text string) string {
	return color + text + Reset
}

// Colorf formats args and wraps the result in color and Reset.
func Colorf(color, format string, args ...any) string {
	return color + fmt.Sprintf(format, args...) + Reset
}

// StripANSI removes every ESC [ ... m sequence from s.
func StripANSI(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\033' && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && s[j] != 'm' {
				j++
			}
			if j < len(s) {
				i = j
				continue
			}
		}
		out = append(out, s[i])
	}
	return string(out)
}
