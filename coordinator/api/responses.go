package api

import "github.com/edgefleet/flotilla/coordinator"

type statusRes struct {
	Participants []string                  `json:"participants"`
	LastRound    *coordinator.RoundSummary `json:"last_round,omitempty"`
}
