package rollserver

import (
	"context"
	"math"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/rollbox/internal/dice"
	"github.com/cory-johannsen/rollbox/internal/history"
	"github.com/cory-johannsen/rollbox/internal/preset"
)

// startServer serves svc over an in-memory listener and returns a connection.
func startServer(t *testing.T, svc DiceServiceServer, logger *zap.Logger) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := NewGRPCServer(svc, logger)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func newClient(t *testing.T, store history.Store, faces []int, opts ...Option) *DiceServiceClient {
	t.Helper()
	logger := zaptest.NewLogger(t)
	engine := dice.NewEngine(dice.NewEvaluator(dice.NewSequenceSource(faces...), dice.CritDoubleDice), logger)
	return NewDiceServiceClient(startServer(t, NewServer(engine, store, logger, opts...), logger))
}

func req(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	st, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return st
}

func ctxT(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestValidate(t *testing.T) {
	c := newClient(t, nil, nil)

	resp, err := c.Validate(ctxT(t), req(t, map[string]any{"expression": "d20 + 1d4 - 2"}))
	require.NoError(t, err)
	got := resp.AsMap()
	assert.Equal(t, true, got["valid"])
	assert.Equal(t, "1d20+1d4-2", got["canonical"])
	assert.Equal(t, float64(-2), got["modifier"])
	assert.Equal(t, float64(2), got["dice_count"])
	assert.Equal(t, []any{
		map[string]any{"count": float64(1), "sides": float64(20)},
		map[string]any{"count": float64(1), "sides": float64(4)},
	}, got["groups"])

	resp, err = c.Validate(ctxT(t), req(t, map[string]any{"expression": "3d1"}))
	require.NoError(t, err, "an invalid expression is not an RPC failure")
	got = resp.AsMap()
	assert.Equal(t, false, got["valid"])
	assert.Equal(t, "SidesOutOfRange", got["kind"])
	assert.Contains(t, got["error"], `"3d1" has 1 sides`)
}

func TestRoll_RecordsHistory(t *testing.T) {
	store := history.NewMemoryStore(10)
	c := newClient(t, store, []int{3, 4, 2, 6})

	resp, err := c.Roll(ctxT(t), req(t, map[string]any{
		"expression": "2d6+1",
		"roll_type":  "adv",
		"owner":      "alice",
	}))
	require.NoError(t, err)
	got := resp.AsMap()
	assert.Equal(t, "2d6+1", got["expression"])
	assert.Equal(t, "advantage", got["roll_type"])
	assert.Equal(t, float64(14), got["total"])
	assert.Equal(t, []any{
		map[string]any{"label": "2d6", "values": []any{float64(3), float64(4)}, "subtotal": float64(7)},
		map[string]any{"label": "advantage", "values": []any{float64(2), float64(6)}, "subtotal": float64(6)},
	}, got["breakdown"])

	entries, err := store.List(context.Background(), "alice", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 14, entries[0].Total)

	hist, err := c.History(ctxT(t), req(t, map[string]any{"owner": "alice"}))
	require.NoError(t, err)
	list := hist.AsMap()["entries"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, float64(14), list[0].(map[string]any)["total"])
	assert.Equal(t, entries[0].ID.String(), list[0].(map[string]any)["id"])
}

func TestRoll_WithoutOwnerIsNotRecorded(t *testing.T) {
	store := history.NewMemoryStore(10)
	c := newClient(t, store, []int{5})
	_, err := c.Roll(ctxT(t), req(t, map[string]any{"expression": "1d6"}))
	require.NoError(t, err)

	_, err = c.History(ctxT(t), req(t, map[string]any{}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestRoll_ErrorCodes(t *testing.T) {
	c := newClient(t, nil, []int{}, WithAdvantageRestriction(true))

	tests := []struct {
		name string
		in   map[string]any
		code codes.Code
	}{
		{"invalid expression", map[string]any{"expression": "1d1"}, codes.InvalidArgument},
		{"empty expression", map[string]any{}, codes.InvalidArgument},
		{"bad roll type", map[string]any{"expression": "1d6", "roll_type": "lucky"}, codes.InvalidArgument},
		{"ineligible advantage", map[string]any{"expression": "1d20", "roll_type": "adv"}, codes.FailedPrecondition},
		{"no presets", map[string]any{"preset": "fireball"}, codes.FailedPrecondition},
		{"rng failure", map[string]any{"expression": "1d6"}, codes.Unavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Roll(ctxT(t), req(t, tt.in))
			assert.Equal(t, tt.code, status.Code(err), "%v", err)
		})
	}
}

func TestRoll_Preset(t *testing.T) {
	reg, err := preset.Parse([]byte(`
- name: smite
  expression: 1d8+2
  roll_type: crit
`))
	require.NoError(t, err)
	c := newClient(t, nil, []int{3, 5, 6}, WithPresets(reg))

	resp, err := c.Roll(ctxT(t), req(t, map[string]any{"preset": "Smite"}))
	require.NoError(t, err)
	got := resp.AsMap()
	assert.Equal(t, "critical", got["roll_type"])
	assert.Equal(t, float64(10), got["total"])

	resp, err = c.Roll(ctxT(t), req(t, map[string]any{"preset": "smite", "roll_type": "normal"}))
	require.NoError(t, err)
	assert.Equal(t, float64(8), resp.AsMap()["total"], "explicit roll_type overrides the preset")

	_, err = c.Roll(ctxT(t), req(t, map[string]any{"preset": "nope"}))
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestScan(t *testing.T) {
	store := history.NewMemoryStore(10)
	c := newClient(t, store, []int{15, 3, 4})

	resp, err := c.Scan(ctxT(t), req(t, map[string]any{
		"text":  "Attack: 1d20+5, Damage: 2d6+3, trap 1d1",
		"roll":  true,
		"owner": "bob",
	}))
	require.NoError(t, err)
	spans := resp.AsMap()["spans"].([]any)
	require.Len(t, spans, 3)

	first := spans[0].(map[string]any)
	assert.Equal(t, "1d20+5", first["text"])
	assert.Equal(t, float64(8), first["start"])
	assert.Equal(t, float64(14), first["end"])
	assert.Equal(t, float64(20), first["result"].(map[string]any)["total"])

	second := spans[1].(map[string]any)
	assert.Equal(t, float64(10), second["result"].(map[string]any)["total"])

	third := spans[2].(map[string]any)
	assert.Equal(t, false, third["valid"])
	assert.NotContains(t, third, "result")

	entries, err := store.List(context.Background(), "bob", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestScan_LocateOnly(t *testing.T) {
	c := newClient(t, nil, nil)
	resp, err := c.Scan(ctxT(t), req(t, map[string]any{"text": "no dice here, just d-20"}))
	require.NoError(t, err)
	assert.Empty(t, resp.AsMap()["spans"])

	resp, err = c.Scan(ctxT(t), req(t, map[string]any{"text": "2d6 and d8"}))
	require.NoError(t, err)
	spans := resp.AsMap()["spans"].([]any)
	require.Len(t, spans, 2)
	assert.NotContains(t, spans[0], "result")
}

func TestHistory_Limit(t *testing.T) {
	store := history.NewMemoryStore(10)
	c := newClient(t, store, []int{1, 2, 3})
	for i := 0; i < 3; i++ {
		_, err := c.Roll(ctxT(t), req(t, map[string]any{"expression": "1d6", "owner": "carol"}))
		require.NoError(t, err)
	}

	count := func(limit any) int {
		resp, err := c.History(ctxT(t), req(t, map[string]any{"owner": "carol", "limit": limit}))
		require.NoError(t, err)
		return len(resp.AsMap()["entries"].([]any))
	}
	assert.Equal(t, 2, count(2))
	assert.Equal(t, 3, count(0))
	assert.Equal(t, 3, count(float64(MaxHistoryLimit)))

	for name, limit := range map[string]*structpb.Value{
		"negative":   structpb.NewNumberValue(-1),
		"fraction":   structpb.NewNumberValue(1.5),
		"NaN":        structpb.NewNumberValue(math.NaN()),
		"infinite":   structpb.NewNumberValue(math.Inf(1)),
		"too large":  structpb.NewNumberValue(1e300),
		"not number": structpb.NewStringValue("5"),
	} {
		t.Run(name, func(t *testing.T) {
			in := &structpb.Struct{Fields: map[string]*structpb.Value{
				"owner": structpb.NewStringValue("carol"),
				"limit": limit,
			}}
			_, err := c.History(ctxT(t), in)
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
		})
	}
}

func TestDiceServiceDesc(t *testing.T) {
	assert.Equal(t, ServiceName, DiceServiceDesc.ServiceName)
	assert.Empty(t, DiceServiceDesc.Metadata)
	names := make([]string, len(DiceServiceDesc.Methods))
	for i, m := range DiceServiceDesc.Methods {
		names[i] = m.MethodName
	}
	assert.Equal(t, []string{"Validate", "Roll", "Scan", "History"}, names)
}

func TestHistory_Disabled(t *testing.T) {
	c := newClient(t, nil, nil)
	_, err := c.History(ctxT(t), req(t, map[string]any{"owner": "x"}))
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}

func TestHealth(t *testing.T) {
	logger := zaptest.NewLogger(t)
	engine := dice.NewEngine(dice.NewEvaluator(dice.NewSeededSource(1), dice.CritDoubleDice), logger)
	conn := startServer(t, NewServer(engine, nil, logger), logger)

	hc := healthpb.NewHealthClient(conn)
	for _, name := range []string{"", ServiceName} {
		resp, err := hc.Check(ctxT(t), &healthpb.HealthCheckRequest{Service: name})
		require.NoError(t, err)
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
	}
}

func TestLoggingInterceptor(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	engine := dice.NewEngine(dice.NewEvaluator(dice.NewSeededSource(1), dice.CritDoubleDice), logger)
	c := NewDiceServiceClient(startServer(t, NewServer(engine, nil, logger), logger))

	_, err := c.Roll(ctxT(t), req(t, map[string]any{"expression": "1d0"}))
	require.Error(t, err)

	rpcs := logs.FilterMessage("rpc").All()
	require.Len(t, rpcs, 1)
	assert.Equal(t, "/"+ServiceName+"/Roll", rpcs[0].ContextMap()["method"])
	assert.Equal(t, "InvalidArgument", rpcs[0].ContextMap()["code"])
}
