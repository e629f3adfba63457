package codec

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/review-tuner/internal/params"
	"github.com/danielpatrickdp/review-tuner/internal/quality"
)

// Compile-time collaborator checks.
var (
	_ quality.Generator = (*Client)(nil)
	_ quality.Analyzer  = (*Client)(nil)
)

// #region mock
type mockConn struct {
	responses map[string]map[string]any
	err       error

	lastMethod string
	lastReq    map[string]any
}

func (m *mockConn) Invoke(_ context.Context, method string, args any, reply any, _ ...grpc.CallOption) error {
	m.lastMethod = method
	m.lastReq = args.(*structpb.Struct).AsMap()
	if m.err != nil {
		return m.err
	}
	resp, err := structpb.NewStruct(m.responses[method])
	if err != nil {
		return err
	}
	proto.Merge(reply.(*structpb.Struct), resp)
	return nil
}

func (m *mockConn) NewStream(context.Context, *grpc.StreamDesc, string, ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, errors.New("streams not supported")
}

// #endregion mock

// #region constructor-tests
func TestNewClientInvalidAddr(t *testing.T) {
	client, err := NewClient("localhost:0")
	if err != nil {
		t.Fatalf("unexpected error creating client: %v", err)
	}
	defer client.Close()
}

func TestNewClientWithConn(t *testing.T) {
	c := NewClientWithConn(&mockConn{})
	if c == nil || c.cc == nil {
		t.Fatal("expected client with injected connection")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close without owned conn: %v", err)
	}
}

// #endregion constructor-tests

// #region generate-tests
func TestGenerate_Success(t *testing.T) {
	mock := &mockConn{responses: map[string]map[string]any{
		MethodGenerate: {"text": "We arrived at dusk...", "post_ref": "post-42"},
	}}
	c := NewClientWithConn(mock)

	doc, err := c.Generate(context.Background(), "Rose Hotel", params.DefaultSettings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Text != "We arrived at dusk..." || doc.PostRef != "post-42" {
		t.Errorf("unexpected document: %+v", doc)
	}
	if mock.lastMethod != MethodGenerate {
		t.Errorf("expected %s, got %s", MethodGenerate, mock.lastMethod)
	}
	if mock.lastReq["entity_id"] != "Rose Hotel" {
		t.Errorf("expected entity_id in request, got %v", mock.lastReq["entity_id"])
	}
	settings, ok := mock.lastReq["settings"].(map[string]any)
	if !ok {
		t.Fatalf("expected settings object, got %T", mock.lastReq["settings"])
	}
	h, _ := settings["h"].(map[string]any)
	if h["persona"] != "couple" {
		t.Errorf("expected h.persona couple, got %v", h["persona"])
	}
}

func TestGenerate_Error(t *testing.T) {
	c := NewClientWithConn(&mockConn{err: errors.New("unavailable")})
	_, err := c.Generate(context.Background(), "Rose Hotel", params.DefaultSettings())
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestGenerate_EmptyDocument(t *testing.T) {
	c := NewClientWithConn(&mockConn{responses: map[string]map[string]any{MethodGenerate: {}}})
	_, err := c.Generate(context.Background(), "Rose Hotel", params.DefaultSettings())
	if err == nil {
		t.Fatal("expected error for empty document")
	}
}

// #endregion generate-tests

// #region analyze-tests
func TestAnalyze_Success(t *testing.T) {
	mock := &mockConn{responses: map[string]map[string]any{
		MethodAnalyze: {
			"total_score": 64.5,
			"axis_scores": map[string]any{"H": map[string]any{"score": 20.0, "max": 40.0}},
			"weak_points": []any{
				map[string]any{"axis": "H", "category": "scene", "score_ratio": 0.2},
			},
			"details": map[string]any{
				"C": []any{map[string]any{"key": "breakfast", "score": 9.0, "max": 10.0}},
			},
		},
	}}
	c := NewClientWithConn(mock)

	a, err := c.Analyze(context.Background(), "text", quality.AnalysisContext{EntityID: "Rose Hotel", Settings: params.DefaultSettings()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.TotalScore != 64.5 {
		t.Errorf("expected 64.5, got %v", a.TotalScore)
	}
	if len(a.WeakPoints) != 1 || a.WeakPoints[0].Key() != "H_scene" || !a.WeakPoints[0].HighPriority() {
		t.Errorf("unexpected weak points: %+v", a.WeakPoints)
	}
	if a.AxisScores["H"].Max != 40 {
		t.Errorf("unexpected axis scores: %+v", a.AxisScores)
	}
	if got := a.Details["C"]; len(got) != 1 || got[0].Ratio() != 0.9 {
		t.Errorf("unexpected details: %+v", got)
	}
	if mock.lastReq["document"] != "text" {
		t.Errorf("expected document in request, got %v", mock.lastReq["document"])
	}
}

func TestAnalyze_Error(t *testing.T) {
	c := NewClientWithConn(&mockConn{err: errors.New("deadline exceeded")})
	_, err := c.Analyze(context.Background(), "text", quality.AnalysisContext{})
	if err == nil {
		t.Fatal("expected error")
	}
}

// #endregion analyze-tests
