// Package api provides the HTTP and WebSocket surface for Voicematch.
//
// Endpoints:
//
//	POST /api/v1/match         resolve one batch (any envelope shape)
//	GET  /api/v1/health        liveness and component status
//	GET  /api/v1/audit/recent  recently processed batches
//	GET  /api/v1/ws            monitoring stream of completed results
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Authentication is optional JWT bearer auth: when no secret is
// configured the API is open, intended for trusted-network deployments.
//
// Thread Safety: All methods are safe for concurrent use.
package api
