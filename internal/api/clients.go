package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/mqttconnect/internal/infrastructure/mqtt"
)

// ClientView is the JSON form of a registered client.
type ClientView struct {
	ClientID  string `json:"client_id"`
	ServerURI string `json:"server_uri"`
	State     string `json:"state"`
	Connected bool   `json:"connected"`
}

func clientView(c *mqtt.Client) ClientView {
	return ClientView{
		ClientID:  c.ClientID(),
		ServerURI: c.ServerURI(),
		State:     c.State().String(),
		Connected: c.IsConnected(),
	}
}

// handleListClients returns every live client in client ID order.
func (s *Server) handleListClients(w http.ResponseWriter, _ *http.Request) {
	views := make([]ClientView, 0, s.factory.Len())
	for _, id := range s.factory.ClientIDs() {
		// A client may close between listing and lookup.
		if c, ok := s.factory.Lookup(id); ok {
			views = append(views, clientView(c))
		}
	}
	respond(w, http.StatusOK, map[string]any{
		"clients": views,
		"count":   len(views),
	})
}

// handleGetClient returns one client by ID.
func (s *Server) handleGetClient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, ok := s.factory.Lookup(id)
	if !ok {
		respondError(w, http.StatusNotFound, "client not found")
		return
	}
	respond(w, http.StatusOK, clientView(c))
}
