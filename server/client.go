package server

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls a remote Service.
type Client struct {
	turn     *connect.Client[structpb.Struct, structpb.Struct]
	sessions *connect.Client[structpb.Struct, structpb.Struct]
}

// NewClient creates a Client for the service at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")
	return &Client{
		turn:     connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+TurnProcedure, opts...),
		sessions: connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+ListSessionsProcedure, opts...),
	}
}

// Turn runs one turn remotely.
func (c *Client) Turn(ctx context.Context, req TurnRequest) (*TurnResponse, error) {
	msg, err := req.toStruct()
	if err != nil {
		return nil, err
	}
	resp, err := c.turn.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	out := turnResponseFromStruct(resp.Msg)
	return &out, nil
}

// ListSessions lists saved sessions remotely.
func (c *Client) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	resp, err := c.sessions.CallUnary(ctx, connect.NewRequest(&structpb.Struct{}))
	if err != nil {
		return nil, err
	}
	return sessionsFromStruct(resp.Msg), nil
}
