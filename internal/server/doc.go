// Package server wires the HTTP surface over the execution core.
//
// This package orchestrates all components:
//   - HTTP routing with Gin framework
//   - Middleware stack (CORS, rate limiting, metrics, recovery)
//   - Session manager and process executor construction
//   - Service provider registration
//
// Server Lifecycle:
//  1. Load configuration from the environment
//  2. Initialize logger (production or development)
//  3. Build session manager, executor, and metrics
//  4. Register service providers
//  5. Setup HTTP routes and middleware
//  6. Start HTTP server
//  7. Graceful shutdown destroys all session workspaces
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(cfg)
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
