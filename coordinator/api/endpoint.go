package api

import (
	"context"

	"github.com/go-kit/kit/endpoint"

	"github.com/edgefleet/flotilla/coordinator"
)

func makeStartRoundEndpoint(c *coordinator.Coordinator) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(startRoundReq)

		return c.RunRound(ctx, req.Config)
	}
}

func makeStatusEndpoint(c *coordinator.Coordinator) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		res := statusRes{Participants: c.Participants()}
		if last, ok := c.LastRound(); ok {
			res.LastRound = &last
		}

		return res, nil
	}
}
