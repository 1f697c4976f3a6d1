package rollserver

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/rollbox/internal/dice"
	"github.com/cory-johannsen/rollbox/internal/history"
	"github.com/cory-johannsen/rollbox/internal/preset"
)

// Server implements DiceServiceServer on top of a dice.Engine.
type Server struct {
	engine            *dice.Engine
	store             history.Store
	presets           *preset.Registry
	restrictAdvantage bool
	logger            *zap.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithPresets lets Roll accept a "preset" field.
func WithPresets(r *preset.Registry) Option {
	return func(s *Server) { s.presets = r }
}

// WithAdvantageRestriction refuses advantage and disadvantage on d20-led
// expressions.
func WithAdvantageRestriction(on bool) Option {
	return func(s *Server) { s.restrictAdvantage = on }
}

// NewServer creates a Server. store may be nil, in which case rolls are not
// recorded and History fails with Unimplemented.
//
// Precondition: engine and logger must be non-nil.
func NewServer(engine *dice.Engine, store history.Store, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{engine: engine, store: store, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate checks {"expression"} and reports {"valid", ...}. An invalid
// expression is a successful call with "valid": false.
func (s *Server) Validate(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	text := stringField(req, "expression")
	expr, err := s.engine.Validate(text)
	if err != nil {
		var verr *dice.ValidationError
		if !errors.As(err, &verr) {
			return nil, toStatus(err)
		}
		return newStruct(map[string]any{
			"valid": false,
			"kind":  verr.Kind.String(),
			"error": verr.Error(),
		})
	}
	groups := make([]any, 0, len(expr.Groups()))
	for _, g := range expr.Groups() {
		groups = append(groups, map[string]any{"count": g.Count, "sides": g.Sides})
	}
	return newStruct(map[string]any{
		"valid":      true,
		"expression": expr.Raw,
		"canonical":  expr.Canonical(),
		"groups":     groups,
		"modifier":   expr.Modifier,
		"dice_count": expr.DiceCount(),
	})
}

// Roll rolls {"expression" | "preset", "roll_type"?, "owner"?}. A preset
// supplies its own roll type unless roll_type is given.
func (s *Server) Roll(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	expr, rollType, err := s.resolve(req)
	if err != nil {
		return nil, err
	}
	if s.restrictAdvantage {
		if err := dice.CheckAdvantage(expr, rollType); err != nil {
			return nil, toStatus(err)
		}
	}
	result, err := s.engine.Roll(expr, rollType)
	if err != nil {
		s.logger.Error("roll failed", zap.String("expression", expr.Raw), zap.Error(err))
		return nil, toStatus(err)
	}
	s.record(ctx, stringField(req, "owner"), result)
	return newStruct(resultMap(result))
}

func (s *Server) resolve(req *structpb.Struct) (dice.Expression, dice.RollType, error) {
	rollType, err := dice.ParseRollType(stringField(req, "roll_type"))
	if err != nil {
		return dice.Expression{}, dice.Normal, status.Error(codes.InvalidArgument, err.Error())
	}

	if name := stringField(req, "preset"); name != "" {
		if s.presets == nil {
			return dice.Expression{}, dice.Normal, status.Error(codes.FailedPrecondition, "no presets are configured")
		}
		p, ok := s.presets.Get(name)
		if !ok {
			return dice.Expression{}, dice.Normal, status.Errorf(codes.NotFound, "unknown preset %q", name)
		}
		if stringField(req, "roll_type") == "" {
			rollType = p.RollType
		}
		return p.Expression, rollType, nil
	}

	expr, err := s.engine.Validate(stringField(req, "expression"))
	if err != nil {
		return dice.Expression{}, dice.Normal, toStatus(err)
	}
	return expr, rollType, nil
}

// Scan locates expressions in {"text"}. With "roll": true each valid span is
// rolled normally and recorded under "owner".
func (s *Server) Scan(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	text := stringField(req, "text")
	doRoll := req.GetFields()["roll"].GetBoolValue()
	owner := stringField(req, "owner")

	spans := make([]any, 0)
	for _, sp := range s.engine.ScanSpans(text) {
		entry := map[string]any{"start": sp.Start, "end": sp.End, "text": sp.Text}
		expr, err := s.engine.Validate(sp.Text)
		if err != nil {
			entry["valid"] = false
			entry["error"] = err.Error()
			spans = append(spans, entry)
			continue
		}
		entry["valid"] = true
		if doRoll {
			result, err := s.engine.Roll(expr, dice.Normal)
			if err != nil {
				return nil, toStatus(err)
			}
			s.record(ctx, owner, result)
			entry["result"] = resultMap(result)
		}
		spans = append(spans, entry)
	}
	return newStruct(map[string]any{"spans": spans})
}

// History lists {"owner"}'s rolls, newest first, up to "limit".
func (s *Server) History(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.store == nil {
		return nil, status.Error(codes.Unimplemented, "roll history is disabled")
	}
	owner := stringField(req, "owner")
	if owner == "" {
		return nil, status.Error(codes.InvalidArgument, "owner is required")
	}
	limit, err := limitField(req)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.List(ctx, owner, limit)
	if err != nil {
		s.logger.Error("listing roll history", zap.String("owner", owner), zap.Error(err))
		return nil, status.Error(codes.Unavailable, "roll history is unavailable")
	}
	out := make([]any, len(entries))
	for i, e := range entries {
		lines := make([]any, len(e.Breakdown))
		for j, l := range e.Breakdown {
			lines[j] = lineMap(l.Label, l.Values, l.Subtotal)
		}
		out[i] = map[string]any{
			"id":         e.ID.String(),
			"expression": e.Expression,
			"roll_type":  e.RollType,
			"breakdown":  lines,
			"modifier":   e.Modifier,
			"total":      e.Total,
			"rolled_at":  e.RolledAt.UTC().Format(time.RFC3339Nano),
		}
	}
	return newStruct(map[string]any{"entries": out})
}

func (s *Server) record(ctx context.Context, owner string, result dice.RollResult) {
	if s.store == nil || owner == "" {
		return
	}
	if err := s.store.Add(ctx, history.NewEntry(owner, result)); err != nil {
		s.logger.Warn("recording roll history", zap.String("owner", owner), zap.Error(err))
	}
}

func resultMap(r dice.RollResult) map[string]any {
	lines := make([]any, len(r.Breakdown))
	for i, e := range r.Breakdown {
		lines[i] = lineMap(e.Label(), e.Values(), e.Subtotal())
	}
	return map[string]any{
		"expression": r.Expression.Raw,
		"canonical":  r.Expression.Canonical(),
		"roll_type":  r.Type.String(),
		"breakdown":  lines,
		"modifier":   r.Modifier,
		"total":      r.Total,
		"timestamp":  r.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

func lineMap(label string, values []int, subtotal int) map[string]any {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return map[string]any{"label": label, "values": vs, "subtotal": subtotal}
}

// toStatus maps engine errors onto gRPC status codes.
func toStatus(err error) error {
	var verr *dice.ValidationError
	switch {
	case errors.As(err, &verr):
		return status.Error(codes.InvalidArgument, verr.Error())
	case errors.Is(err, dice.ErrAdvantageIneligible):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, dice.ErrRngFailure):
		return status.Error(codes.Unavailable, "randomness source failure")
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// MaxHistoryLimit caps the "limit" field of a History request.
const MaxHistoryLimit = 1000

// limitField reads the optional "limit" field. Absent or 0 means every
// retained entry; anything else must be a whole number in 1..MaxHistoryLimit.
func limitField(req *structpb.Struct) (int, error) {
	v, ok := req.GetFields()["limit"]
	if !ok {
		return 0, nil
	}
	n, isNum := v.GetKind().(*structpb.Value_NumberValue)
	if !isNum {
		return 0, status.Error(codes.InvalidArgument, "limit must be a number")
	}
	f := n.NumberValue
	if math.IsNaN(f) || f != math.Trunc(f) || f < 0 || f > MaxHistoryLimit {
		return 0, status.Errorf(codes.InvalidArgument, "limit must be a whole number 0-%d", MaxHistoryLimit)
	}
	return int(f), nil
}

func stringField(req *structpb.Struct, name string) string {
	return strings.TrimSpace(req.GetFields()[name].GetStringValue())
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	return st, nil
}
