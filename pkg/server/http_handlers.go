package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// ChannelsJSONHandler serves the channel list as JSON, in the same shape as
// the channels-info payload
func (s *Server) ChannelsJSONHandler(w http.ResponseWriter, r *http.Request) {
	info := s.sessions.ChannelsInfo()

	// Return as JSON
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*") // Allow CORS for external websites
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"info":  info,
		"count": len(info),
	}); err != nil {
		s.logger.Warn().Err(err).Msg("error encoding channels JSON")
	}
}

// HealthHandler serves health check status
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":         "healthy",
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
	}

	// Add session info
	health["active_sessions"] = s.sessions.CountOnlineUsers()
	health["channels"] = s.sessions.CountChannels()

	// Return as JSON
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Warn().Err(err).Msg("error encoding health JSON")
	}
}
