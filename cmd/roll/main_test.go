package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_SeededIsReproducible(t *testing.T) {
	opts := options{rollType: "normal", seed: 42, seeded: true, crit: "double"}
	var a, b bytes.Buffer
	require.NoError(t, run(&a, "4d6+2", opts))
	require.NoError(t, run(&b, "4d6+2", opts))
	assert.Equal(t, a.String(), b.String())
	assert.Contains(t, a.String(), "4d6+2")
	assert.NotContains(t, a.String(), "\033[")
}

func TestRun_RollTypeHeader(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(&out, "2d6", options{rollType: "dis", seed: 7, seeded: true, crit: "double"}))
	assert.True(t, strings.HasPrefix(out.String(), "2d6 (disadvantage)\n"))
	assert.Contains(t, out.String(), "disadvantage  ")
}

func TestRun_Errors(t *testing.T) {
	var out bytes.Buffer
	assert.ErrorContains(t, run(&out, "1d1", options{rollType: "normal", crit: "double"}), "has 1 sides")
	assert.Error(t, run(&out, "1d6", options{rollType: "lucky", crit: "double"}))
	assert.Error(t, run(&out, "1d6", options{rollType: "normal", crit: "triple"}))
	assert.Error(t, run(&out, "nothing", options{rollType: "normal", crit: "double", scan: true}))
}

func TestRun_Scan(t *testing.T) {
	var out bytes.Buffer
	opts := options{rollType: "normal", seed: 3, seeded: true, crit: "double", scan: true}
	require.NoError(t, run(&out, "hit 1d20+5 for 2d6, trap 1d1", opts))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "hit 1d20+5 for 2d6, trap 1d1", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "  1d20+5 → 1d20["))
	assert.True(t, strings.HasPrefix(lines[2], "  2d6 → 2d6["))
	assert.Equal(t, `  1d1: "1d1" has 1 sides, must be 2-1000`, lines[3])
}
