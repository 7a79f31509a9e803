package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name      string         `json:"name"`
	Endpoints []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name: "dispatch status",
		Endpoints: []endpointInfo{
			{"/health", []string{"GET"}, "Liveness and current tick"},
			{"/status", []string{"GET"}, "Dispatcher snapshot at the last tick boundary"},
			{"/jobs/{id}", []string{"GET"}, "One job by ID or file position"},
			{"/events", []string{"GET"}, "Journal events; filters: run_id, job_id, kind, limit"},
			{"/metrics", []string{"GET"}, "Prometheus metrics"},
		},
	})
}
