package adminrpc

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// Client calls the admin service
type Client struct {
	getRoomState *connect.Client[GetRoomStateRequest, GetRoomStateResponse]
	listRooms    *connect.Client[ListRoomsRequest, ListRoomsResponse]
	forceStart   *connect.Client[ForceStartRequest, ForceStartResponse]
	getStats     *connect.Client[GetStatsRequest, GetStatsResponse]
}

func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &Client{
		getRoomState: connect.NewClient[GetRoomStateRequest, GetRoomStateResponse](httpClient, baseURL+GetRoomStateProcedure, opts...),
		listRooms:    connect.NewClient[ListRoomsRequest, ListRoomsResponse](httpClient, baseURL+ListRoomsProcedure, opts...),
		forceStart:   connect.NewClient[ForceStartRequest, ForceStartResponse](httpClient, baseURL+ForceStartProcedure, opts...),
		getStats:     connect.NewClient[GetStatsRequest, GetStatsResponse](httpClient, baseURL+GetStatsProcedure, opts...),
	}
}

func (c *Client) GetRoomState(ctx context.Context, req *GetRoomStateRequest) (*GetRoomStateResponse, error) {
	resp, err := c.getRoomState.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) ListRooms(ctx context.Context) (*ListRoomsResponse, error) {
	resp, err := c.listRooms.CallUnary(ctx, connect.NewRequest(&ListRoomsRequest{}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) ForceStart(ctx context.Context, req *ForceStartRequest) (*ForceStartResponse, error) {
	resp, err := c.forceStart.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) GetStats(ctx context.Context) (*GetStatsResponse, error) {
	resp, err := c.getStats.CallUnary(ctx, connect.NewRequest(&GetStatsRequest{}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}
