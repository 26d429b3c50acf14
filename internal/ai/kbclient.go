package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"battlemediation/internal/simulator"
)

// kbMethod is the single RPC the knowledge-base retrieval subprocess
// exposes. There is no .proto in this repo: the subprocess is an
// external process outside this module's scope (spec.md §1(b) treats
// the retrieval backend itself as opaque), so rather than hand-author
// protoc-generated stubs this client invokes the method generically,
// using structpb.Struct as both request and response message — any
// server speaking a single "Suggest(Struct) returns (Struct)" RPC over
// gRPC inter-operates with it with no shared .proto file.
const kbMethod = "/battlemediation.knowledgebase.v1.Retrieval/Suggest"

// KBClient is the inner layer of Tier5 (spec.md §4.5): a retrieval
// service over the accumulated battle knowledge base, reached over
// gRPC at the address from AIConfig.KnowledgeBaseAddr.
type KBClient struct {
	conn *grpc.ClientConn
}

// NewKBClient dials addr lazily; addr == "" disables the client (Tier5
// falls through to the LLM, then to Tier4 heuristics).
func NewKBClient(addr string) (*KBClient, error) {
	if addr == "" {
		return nil, nil
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial knowledge base at %s: %w", addr, err)
	}
	return &KBClient{conn: conn}, nil
}

// Close releases the underlying gRPC connection.
func (c *KBClient) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Suggest marshals req to JSON, folds it into a structpb.Struct, and
// invokes the knowledge base's Suggest RPC directly (no generated
// client stub exists for it).
func (c *KBClient) Suggest(ctx context.Context, req simulator.Request) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal kb request: %w", err)
	}

	var asMap map[string]interface{}
	if err := json.Unmarshal(data, &asMap); err != nil {
		return "", fmt.Errorf("reshape kb request: %w", err)
	}
	in, err := structpb.NewStruct(asMap)
	if err != nil {
		return "", fmt.Errorf("build kb request struct: %w", err)
	}

	out := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, kbMethod, in, out); err != nil {
		return "", fmt.Errorf("kb invoke: %w", err)
	}

	cmdVal, ok := out.Fields["command"]
	if !ok {
		return "", fmt.Errorf("kb response missing command field")
	}
	return cmdVal.GetStringValue(), nil
}
