package api

type startRoundReq struct {
	Config map[string]any `json:"config,omitempty"`
}

type statusReq struct{}
