package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/mqttconnect/internal/history"
	"github.com/nerrad567/mqttconnect/internal/infrastructure/mqtt"
)

// AttemptView is the JSON form of a recorded connect attempt.
type AttemptView struct {
	ID         string   `json:"id"`
	ClientID   string   `json:"client_id"`
	ServerURI  string   `json:"server_uri"`
	ServerURIs []string `json:"server_uris,omitempty"`
	Code       int      `json:"code"`
	Outcome    string   `json:"outcome"`
	Message    string   `json:"message,omitempty"`
	DurationMS int64    `json:"duration_ms"`
	At         string   `json:"attempted_at"`
}

func attemptView(a mqtt.Attempt) AttemptView {
	return AttemptView{
		ID:         a.ID,
		ClientID:   a.ClientID,
		ServerURI:  a.ServerURI,
		ServerURIs: a.ServerURIs,
		Code:       int(a.Code),
		Outcome:    a.Outcome,
		Message:    a.Message,
		DurationMS: a.Duration.Milliseconds(),
		At:         a.At.UTC().Format(time.RFC3339Nano),
	}
}

var validOutcomes = map[string]bool{
	mqtt.OutcomeConnected:     true,
	mqtt.OutcomeRejected:      true,
	mqtt.OutcomeUnmapped:      true,
	mqtt.OutcomeInvalidConfig: true,
}

// handleListAttempts returns a page of connect attempts, newest first.
//
// Query parameters:
//   - client_id: filter by client
//   - outcome: connected, rejected, unmapped or invalid_config
//   - since: RFC 3339 lower bound on attempt time
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAttempts(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		respondError(w, http.StatusServiceUnavailable, "connect history not configured")
		return
	}

	q := r.URL.Query()
	filter := history.Filter{
		ClientID: q.Get("client_id"),
		Outcome:  q.Get("outcome"),
	}
	if filter.Outcome != "" && !validOutcomes[filter.Outcome] {
		respondError(w, http.StatusBadRequest, "outcome must be connected, rejected, unmapped or invalid_config")
		return
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = since
	}
	var ok bool
	if filter.Limit, ok = queryInt(w, q.Get("limit"), "limit"); !ok {
		return
	}
	if filter.Offset, ok = queryInt(w, q.Get("offset"), "offset"); !ok {
		return
	}

	result, err := s.history.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list connect attempts", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list connect attempts")
		return
	}

	views := make([]AttemptView, 0, len(result.Attempts))
	for _, a := range result.Attempts {
		views = append(views, attemptView(a))
	}
	respond(w, http.StatusOK, map[string]any{
		"attempts": views,
		"total":    result.Total,
		"limit":    result.Limit,
		"offset":   result.Offset,
	})
}

// handleAttemptStats returns attempt counts per outcome.
func (s *Server) handleAttemptStats(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		respondError(w, http.StatusServiceUnavailable, "connect history not configured")
		return
	}

	clientID := r.URL.Query().Get("client_id")
	counts, err := s.history.CountByOutcome(r.Context(), clientID)
	if err != nil {
		s.logger.Error("failed to count connect attempts", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to count connect attempts")
		return
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	respond(w, http.StatusOK, map[string]any{
		"client_id":  clientID,
		"by_outcome": counts,
		"total":      total,
	})
}

// queryInt parses an optional non-negative integer parameter, writing a 400
// and returning false when it is malformed.
func queryInt(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		respondError(w, http.StatusBadRequest, name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}
