// Package api exposes the coordinator over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/edgefleet/flotilla/coordinator"
)

func MakeHandler(c *coordinator.Coordinator) http.Handler {
	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(encodeError),
	}

	mux := chi.NewRouter()

	mux.Route("/rounds", func(r chi.Router) {
		r.Post("/", kithttp.NewServer(
			makeStartRoundEndpoint(c),
			decodeStartRoundRequest,
			encodeResponse,
			opts...,
		).ServeHTTP)
	})
	mux.Get("/status", kithttp.NewServer(
		makeStatusEndpoint(c),
		decodeStatusRequest,
		encodeResponse,
		opts...,
	).ServeHTTP)
	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	return otelhttp.NewHandler(mux, "coordinator")
}

func decodeStartRoundRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req startRoundReq
	if r.ContentLength == 0 {
		return req, nil
	}
	if !strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return nil, errors.New("unsupported content type")
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}

	return req, nil
}

func decodeStatusRequest(_ context.Context, r *http.Request) (interface{}, error) {
	return statusReq{}, nil
}

func encodeResponse(_ context.Context, w http.ResponseWriter, response interface{}) error {
	w.Header().Set("Content-Type", "application/json")

	return json.NewEncoder(w).Encode(response)
}

func encodeError(_ context.Context, err error, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")

	switch {
	case errors.Is(err, coordinator.ErrNoParticipants):
		w.WriteHeader(http.StatusConflict)
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}

	if encErr := json.NewEncoder(w).Encode(map[string]string{"error": err.Error()}); encErr != nil {
		return
	}
}
