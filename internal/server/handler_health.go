package server

import (
	"net/http"
	"runtime"
	"time"
)

type healthResponse struct {
	Status     string `json:"status"`
	GoVersion  string `json:"go_version"`
	Uptime     string `json:"uptime"`
	RunID      string `json:"run_id"`
	Tick       int    `json:"tick"`
	Dispatcher string `json:"dispatcher"`
	Journal    string `json:"journal"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	resp := healthResponse{
		Status:     "healthy",
		GoVersion:  runtime.Version(),
		Uptime:     time.Since(s.startTime).Round(time.Second).String(),
		Dispatcher: "running",
		Journal:    "disabled",
	}
	if snap := s.source.Snapshot(); snap != nil {
		resp.RunID = snap.RunID
		resp.Tick = snap.Tick
		if snap.Done {
			resp.Dispatcher = "finished"
		}
	}
	if s.journal != nil {
		resp.Journal = "enabled"
	}
	respondOK(w, reqID, resp)
}
