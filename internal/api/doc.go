// Package api implements the HTTP REST API and WebSocket push channel of
// the Kommander bridge.
//
// This package provides:
//   - REST endpoints under /api/v1 for connection status, cached device
//     state, feedback evaluation, variables, subscriptions and actions
//   - The action log at /api/v1/actions/log when the database is enabled
//   - WebSocket hub broadcasting status, state, feedback and variable
//     changes on named channels
//   - Middleware stack (request ID, logging, recovery, CORS)
//   - Prometheus exposition outside the /api/v1 prefix
//
// # Architecture
//
// The server sits between operator tools and the bridge. Actions posted to
// /api/v1/actions/{id} are encoded by the bridge's catalog and sent to the
// device; state changes flow back through the hub, which the bridge shares
// with the server.
//
// # Graceful Degradation
//
// The server runs without a database, MQTT or metrics. Endpoints that need
// a missing component answer 503; everything else keeps working.
//
// Lifecycle:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
