// Package transducer defines the contract to the external LLM transducer
// and a gRPC client implementation. The transducer itself — the raw
// language bridge and its prompt templates — is an external collaborator
// (spec §1); this package owns only the request/response envelope and
// batching the Graph Indexer needs to call it safely.
package transducer

import (
	"context"
	"fmt"

	"github.com/telos-systems/telos-core/internal/ratelimit"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Transducer is the external LLM transducer contract: textToSchema coerces
// free text into a value matching schema; Transduce is the lower-level
// envelope both textToSchema and the Graph Indexer's summarization calls
// are built on.
type Transducer interface {
	TextToSchema(ctx context.Context, text string, schema map[string]any) (map[string]any, error)
	Transduce(ctx context.Context, request map[string]any) (Result, error)
}

// Result is the transduce() envelope: either a successful structured
// result, or an error string when the transducer itself reports failure
// (as opposed to a transport error, which is returned as a Go error).
type Result struct {
	Success bool
	Result  map[string]any
	Error   string
}

const methodTransduce = "/telos.transducer.v1.Transducer/Transduce"

// GRPCClient calls a remotely hosted LLM transducer service. Requests and
// responses are carried as google.protobuf.Struct, matching the spec's
// untyped "map with method, text, schema" request shape without requiring
// a fixed generated schema per call.
type GRPCClient struct {
	conn    *grpc.ClientConn
	limiter *ratelimit.Limiter
}

// DialGRPC connects to an LLM transducer service at target. rate and burst
// configure the client-side request budget (the transducer "may be
// rate-limited" per spec §6); pass rate<=0 to disable limiting.
func DialGRPC(target string, rate float64, burst int) (*GRPCClient, error) {
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("transducer: dial %s: %w", target, err)
	}

	var limiter *ratelimit.Limiter
	if rate > 0 {
		limiter = ratelimit.NewLimiter(rate, burst)
	}
	return &GRPCClient{conn: conn, limiter: limiter}, nil
}

// Close releases the underlying connection.
func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

// TextToSchema implements Transducer via a single Transduce call shaped as
// {method: "textToSchema", text, schema}.
func (c *GRPCClient) TextToSchema(ctx context.Context, text string, schema map[string]any) (map[string]any, error) {
	result, err := c.Transduce(ctx, map[string]any{
		"method": "textToSchema",
		"text":   text,
		"schema": schema,
	})
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("transducer: textToSchema failed: %s", result.Error)
	}
	return result.Result, nil
}

// Transduce implements Transducer.
func (c *GRPCClient) Transduce(ctx context.Context, request map[string]any) (Result, error) {
	if c.limiter != nil && !c.limiter.Allow("transduce") {
		return Result{}, fmt.Errorf("transducer: rate limit exceeded")
	}

	reqStruct, err := structpb.NewStruct(request)
	if err != nil {
		return Result{}, fmt.Errorf("transducer: encode request: %w", err)
	}

	respStruct := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, methodTransduce, reqStruct, respStruct); err != nil {
		return Result{}, fmt.Errorf("transducer: transduce rpc: %w", err)
	}

	return decodeResult(respStruct), nil
}

// Disabled implements Transducer by refusing every call, for deployments
// that run with transducer.enabled = false. It lets callers that need a
// Transducer value (the Graph Indexer) stay wired unconditionally instead
// of threading a "do we have one" check through every caller.
type Disabled struct{}

// TextToSchema implements Transducer.
func (Disabled) TextToSchema(ctx context.Context, text string, schema map[string]any) (map[string]any, error) {
	return nil, fmt.Errorf("transducer: disabled")
}

// Transduce implements Transducer.
func (Disabled) Transduce(ctx context.Context, request map[string]any) (Result, error) {
	return Result{}, fmt.Errorf("transducer: disabled")
}

func decodeResult(s *structpb.Struct) Result {
	fields := s.AsMap()
	res := Result{}
	if ok, found := fields["success"].(bool); found {
		res.Success = ok
	}
	if errMsg, found := fields["error"].(string); found {
		res.Error = errMsg
	}
	if inner, found := fields["result"].(map[string]any); found {
		res.Result = inner
	}
	return res
}
