/*
Package api provides the plain HTTP surface that sits alongside a demobit
server's gRPC sync endpoint: liveness, readiness, and Prometheus metrics,
the kind of operational surface an orchestrator or scrape target expects
independent of the sync protocol itself.

# Architecture

	┌──────────────── OPERATOR / PROMETHEUS ────────────────┐
	│                                                         │
	│   GET /health   →  process is alive                    │
	│   GET /ready    →  repository's commit log reachable   │
	│   GET /metrics  →  promhttp.Handler()                  │
	│                                                         │
	└───────────────────────┬─────────────────────────────────┘
	                        │ HTTP
	┌───────────────────────▼──── demobit SERVER ────────────┐
	│                                                         │
	│   HealthServer (pkg/api)                               │
	│     - wraps *repository.Repository                     │
	│     - /ready calls repo.Status() to confirm the         │
	│       local and remote commit logs can be read          │
	│                                                         │
	│   Sync RPCs (pkg/syncrpc) run on a separate gRPC        │
	│   listener; this package never touches them directly.   │
	│                                                         │
	└─────────────────────────────────────────────────────────┘

# Usage

	repo, err := repository.Open(store, uid, repository.ServerMode(""))
	hs := api.NewHealthServer(repo)
	go hs.Start(":8081")

# Design Patterns

Narrow wrapping:
  - HealthServer only reads repo.Status(); it never opens a commit
    context or mutates state, keeping the operational surface safe to
    poll at any frequency.

Nil-safe construction:
  - NewHealthServer(nil) is valid and always reports not ready, useful
    for tests and for a process that starts serving HTTP before its
    repository is opened.
*/
package api
