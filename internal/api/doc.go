// Package api serves a read-only HTTP status API for mqttconnect.
//
// It reports the clients registered with an mqtt.Factory, their lifecycle
// state, and the connect-attempt history.
//
// # Routes
//
//	GET /api/v1/health                       liveness, no auth
//	GET /api/v1/clients                      registered clients
//	GET /api/v1/clients/{id}                 one client
//	GET /api/v1/attempts                     history page (client_id, outcome, since, limit, offset)
//	GET /api/v1/attempts/stats               attempt counts per outcome (client_id)
//
// When a JWT secret is configured every route but health requires an
// "Authorization: Bearer <token>" header carrying an HS256 token.
//
// # Usage
//
//	server, err := api.New(api.Deps{Config: cfg.API, Logger: log, Factory: factory})
//	if err != nil {
//	    return err
//	}
//	if err := server.Start(ctx); err != nil {
//	    return err
//	}
//	defer server.Close()
package api
