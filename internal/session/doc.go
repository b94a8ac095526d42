// Package session provides isolated per-session workspaces with lifecycle
// management.
//
// Each session owns a private directory holding the files its executions
// read and write, plus bookkeeping: access timestamps, an execution
// counter, and a bounded history of recent executions.
//
// Components:
//   - Session: one workspace with file quotas and history
//   - Manager: a capacity-bounded registry of sessions
//
// Lifecycle:
//  1. Resolve creates a session on first reference (or reuses a live one)
//  2. Operations touch the timestamp, append history, and add files
//  3. Idle sessions expire and are swept periodically
//  4. When the registry is full, the least-recently-used session is
//     evicted and its workspace directory destroyed
//
// Eviction destroys real directories, so sessions with an execution in
// flight are tracked with a counter and never selected.
//
// Example Usage:
//
//	manager := session.NewManager(cfg.Sessions, logger)
//	sess, err := manager.Resolve("my-session")
//	name, err := sess.AddFile("data.csv", content)
//	defer manager.Shutdown()
package session
