// Package main is a one-shot dice roller:
//
//	roll [-type adv] [-seed N] [-crit double] [-color] 2d6+3
//	roll -scan "Attack 1d20+5, damage 2d6+3"
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/rollbox/internal/dice"
	"github.com/cory-johannsen/rollbox/internal/frontend/handlers"
	"github.com/cory-johannsen/rollbox/internal/frontend/telnet"
)

type options struct {
	rollType string
	seed     uint64
	seeded   bool
	crit     string
	scan     bool
	color    bool
}

func main() {
	var opts options
	flag.StringVar(&opts.rollType, "type", "normal", "roll type: normal, adv, dis or crit")
	flag.Uint64Var(&opts.seed, "seed", 0, "seed for a reproducible roll (0 = crypto randomness)")
	flag.StringVar(&opts.crit, "crit", "double", "critical policy: double or max_plus_roll")
	flag.BoolVar(&opts.scan, "scan", false, "find and roll every expression in the text")
	flag.BoolVar(&opts.color, "color", false, "colour the output with ANSI escapes")
	flag.Parse()
	opts.seeded = opts.seed != 0

	text := strings.Join(flag.Args(), " ")
	if strings.TrimSpace(text) == "" {
		fmt.Fprintln(os.Stderr, "usage: roll [flags] <expression or text>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := run(os.Stdout, text, opts); err != nil {
		fmt.Fprintln(os.Stderr, "roll:", strings.TrimPrefix(err.Error(), "dice: "))
		os.Exit(1)
	}
}

func run(w io.Writer, text string, opts options) error {
	rollType, err := dice.ParseRollType(opts.rollType)
	if err != nil {
		return err
	}
	crit, err := dice.ParseCritPolicy(opts.crit)
	if err != nil {
		return err
	}
	src := dice.NewCryptoSource()
	if opts.seeded {
		src = dice.NewSeededSource(opts.seed)
	}
	engine := dice.NewEngine(dice.NewEvaluator(src, crit), zap.NewNop())

	emit := func(line string) {
		if !opts.color {
			line = telnet.StripANSI(line)
		}
		fmt.Fprintln(w, line)
	}

	if !opts.scan {
		result, err := engine.RollText(text, rollType)
		if err != nil {
			return err
		}
		for _, line := range handlers.RenderRoll(result) {
			emit(line)
		}
		return nil
	}

	spans := engine.ScanSpans(text)
	if len(spans) == 0 {
		return fmt.Errorf("no dice expressions found in %q", text)
	}
	emit(handlers.RenderScan(text, spans))
	for _, sp := range spans {
		result, err := engine.RollText(sp.Text, rollType)
		if err != nil {
			emit("  " + sp.Text + ": " + handlers.RenderError(err))
			continue
		}
		emit("  " + handlers.RenderSummary(result))
	}
	return nil
}
