package codec

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/review-tuner/internal/params"
	"github.com/danielpatrickdp/review-tuner/internal/quality"
)

// Full gRPC method names served by the generation service. Payloads are
// google.protobuf.Struct in both directions.
const (
	MethodGenerate = "/reviewtuner.v1.Generation/Generate"
	MethodAnalyze  = "/reviewtuner.v1.Quality/Analyze"
)

// #region client-struct
// Client wraps the gRPC connection to the external generator and analyzer.
type Client struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}
// #endregion client-struct

// #region constructor
// NewClient connects to the generation service at addr.
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, cc: conn}, nil
}

// NewClientWithConn creates a Client over an injected connection.
// Used for testing without a real server.
func NewClientWithConn(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
// #endregion close

// #region generate
// Generate asks the service for a review of entityID written with settings.
func (c *Client) Generate(ctx context.Context, entityID string, settings params.ParameterSet) (quality.Document, error) {
	sv, err := settingsValue(settings)
	if err != nil {
		return quality.Document{}, err
	}
	req, err := structpb.NewStruct(map[string]any{
		"entity_id": entityID,
		"settings":  sv,
	})
	if err != nil {
		return quality.Document{}, fmt.Errorf("build generate request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, MethodGenerate, req, resp); err != nil {
		return quality.Document{}, fmt.Errorf("generate rpc: %w", err)
	}

	var doc quality.Document
	if err := decode(resp, &doc); err != nil {
		return quality.Document{}, fmt.Errorf("decode generate response: %w", err)
	}
	if doc.Text == "" {
		return quality.Document{}, fmt.Errorf("generate rpc: empty document")
	}
	log.Debug().Str("component", "codec").Str("entity", entityID).Int("chars", len(doc.Text)).Msg("document generated")
	return doc, nil
}
// #endregion generate

// #region analyze
// Analyze scores document and returns its weak points.
func (c *Client) Analyze(ctx context.Context, document string, actx quality.AnalysisContext) (quality.Analysis, error) {
	sv, err := settingsValue(actx.Settings)
	if err != nil {
		return quality.Analysis{}, err
	}
	req, err := structpb.NewStruct(map[string]any{
		"entity_id": actx.EntityID,
		"document":  document,
		"settings":  sv,
	})
	if err != nil {
		return quality.Analysis{}, fmt.Errorf("build analyze request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, MethodAnalyze, req, resp); err != nil {
		return quality.Analysis{}, fmt.Errorf("analyze rpc: %w", err)
	}

	var a quality.Analysis
	if err := decode(resp, &a); err != nil {
		return quality.Analysis{}, fmt.Errorf("decode analyze response: %w", err)
	}
	log.Debug().Str("component", "codec").Str("entity", actx.EntityID).Float64("score", a.TotalScore).Int("weak_points", len(a.WeakPoints)).Msg("document analyzed")
	return a, nil
}
// #endregion analyze

// #region helpers
// settingsValue converts a parameter set to the generic form structpb accepts.
func settingsValue(p params.ParameterSet) (map[string]any, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	return out, nil
}

// decode maps a Struct onto a tagged Go value through its JSON form.
func decode(s *structpb.Struct, v any) error {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
// #endregion helpers
