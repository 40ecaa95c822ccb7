package transducer

import (
	"context"
	"net"
	"testing"

	"github.com/telos-systems/telos-core/internal/ratelimit"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

// fakeTransducerServer answers every Transduce call with a canned result,
// letting TestGRPCClient_Transduce exercise the wire encoding without a
// real generated service stub.
type fakeTransducerServer struct {
	response map[string]any
}

func (s *fakeTransducerServer) transduce(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	resp, err := structpb.NewStruct(s.response)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

var fakeServiceDesc = grpc.ServiceDesc{
	ServiceName: "telos.transducer.v1.Transducer",
	HandlerType: (*fakeTransducerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Transduce",
			Handler: func(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
				in := &structpb.Struct{}
				if err := dec(in); err != nil {
					return nil, err
				}
				return srv.(*fakeTransducerServer).transduce(ctx, in)
			},
		},
	},
}

func dialFake(t *testing.T, response map[string]any) (*GRPCClient, func()) {
	t.Helper()

	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	srv.RegisterService(&fakeServiceDesc, &fakeTransducerServer{response: response})
	go srv.Serve(lis)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial fake transducer: %v", err)
	}

	client := &GRPCClient{conn: conn}
	return client, func() {
		conn.Close()
		srv.Stop()
	}
}

func TestGRPCClient_TransduceDecodesResponse(t *testing.T) {
	client, closeFn := dialFake(t, map[string]any{
		"success": true,
		"result":  map[string]any{"title": "community A"},
	})
	defer closeFn()

	result, err := client.Transduce(context.Background(), map[string]any{"method": "summarize"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Error("expected success=true")
	}
	if result.Result["title"] != "community A" {
		t.Errorf("expected title 'community A', got %v", result.Result["title"])
	}
}

func TestGRPCClient_TextToSchemaFailsOnUnsuccessfulEnvelope(t *testing.T) {
	client, closeFn := dialFake(t, map[string]any{
		"success": false,
		"error":   "schema mismatch",
	})
	defer closeFn()

	_, err := client.TextToSchema(context.Background(), "some text", map[string]any{"type": "object"})
	if err == nil {
		t.Fatal("expected an error when the transducer reports failure")
	}
}

func TestDisabled_RefusesEveryCall(t *testing.T) {
	var d Disabled
	if _, err := d.TextToSchema(context.Background(), "text", nil); err == nil {
		t.Error("expected TextToSchema to fail on a disabled transducer")
	}
	if _, err := d.Transduce(context.Background(), nil); err == nil {
		t.Error("expected Transduce to fail on a disabled transducer")
	}
}

func TestGRPCClient_RateLimitRejectsBeyondBurst(t *testing.T) {
	client, closeFn := dialFake(t, map[string]any{"success": true, "result": map[string]any{}})
	defer closeFn()
	client.limiter = ratelimit.NewLimiter(0, 1)

	if _, err := client.Transduce(context.Background(), map[string]any{}); err != nil {
		t.Fatalf("expected first call within burst to succeed, got %v", err)
	}
	if _, err := client.Transduce(context.Background(), map[string]any{}); err == nil {
		t.Error("expected second call to be rate limited")
	}
}
