package dice

import (
	"errors"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Engine is the surface the front ends call: validate, roll, scan and
// isExpression. Every roll and every RNG failure is logged.
type Engine struct {
	eval   *Evaluator
	logger *zap.Logger
}

// NewEngine creates an Engine that rolls with eval and logs to logger.
//
// Precondition: eval and logger must be non-nil.
func NewEngine(eval *Evaluator, logger *zap.Logger) *Engine {
	return &Engine{eval: eval, logger: logger}
}

// Validate parses text. It is Parse with the engine's logging.
func (g *Engine) Validate(text string) (Expression, error) {
	expr, err := Parse(text)
	if err != nil {
		g.logger.Debug("dice expression rejected",
			zap.String("input", text),
			zap.Error(err),
		)
		return Expression{}, err
	}
	return expr, nil
}

// Roll evaluates expr under rollType and logs the result at debug level.
//
// Precondition: expr must come from Validate or Parse.
// Postcondition: Returns a fresh RollResult, or an error wrapping ErrRngFailure.
func (g *Engine) Roll(expr Expression, rollType RollType) (RollResult, error) {
	result, err := g.eval.Evaluate(expr, rollType)
	if err != nil {
		if errors.Is(err, ErrRngFailure) {
			g.logger.Error("dice roll failed",
				zap.String("expression", expr.Raw),
				zap.Stringer("type", rollType),
				zap.Error(err),
			)
		}
		return RollResult{}, err
	}
	g.logger.Debug("dice roll",
		zap.String("expression", expr.Raw),
		zap.Stringer("type", rollType),
		zap.Array("breakdown", breakdownMarshaler(result.Breakdown)),
		zap.Int("modifier", result.Modifier),
		zap.Int("total", result.Total),
	)
	return result, nil
}

// RollText validates text and rolls it in one call.
func (g *Engine) RollText(text string, rollType RollType) (RollResult, error) {
	expr, err := g.Validate(text)
	if err != nil {
		return RollResult{}, err
	}
	return g.Roll(expr, rollType)
}

// Scan returns the dice expressions located in text.
func (g *Engine) Scan(text string) []string {
	return Scan(text)
}

// ScanSpans returns the located expressions with their byte offsets.
func (g *Engine) ScanSpans(text string) []Span {
	return ScanSpans(text)
}

// IsExpression reports whether Validate would succeed on text.
func (g *Engine) IsExpression(text string) bool {
	return IsExpression(text)
}

// CritPolicy returns the critical policy rolls are made with.
func (g *Engine) CritPolicy() CritPolicy {
	return g.eval.CritPolicy()
}

type breakdownMarshaler []Entry

func (b breakdownMarshaler) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, e := range b {
		if err := enc.AppendObject(entryMarshaler{e}); err != nil {
			return err
		}
	}
	return nil
}

type entryMarshaler struct{ Entry }

func (m entryMarshaler) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("label", m.Label())
	if err := enc.AddArray("values", zapcore.ArrayMarshalerFunc(func(ae zapcore.ArrayEncoder) error {
		for _, v := range m.Values() {
			ae.AppendInt(v)
		}
		return nil
	})); err != nil {
		return err
	}
	enc.AddInt("subtotal", m.Subtotal())
	return nil
}
