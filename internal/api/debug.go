package api

import (
	"net/http"
	"time"

	"edgeplace/internal/buildinfo"
)

func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"build":  buildinfo.Info(),
		"time":   time.Now().UTC().Format(time.RFC3339),
		"config": s.Config.Redacted(),
		"points": s.Driver.Points(),
	}
	writeJSON(w, http.StatusOK, info)
}
