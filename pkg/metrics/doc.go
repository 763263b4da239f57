/*
Package metrics provides Prometheus metrics collection and exposition for
demobit's replicas: commit-log depth, sync RPC outcomes, and storage object
counts, all scraped over the standard /metrics HTTP endpoint.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Metric Categories               │          │
	│  │                                              │          │
	│  │  Commit log: local/remote depth, ctx open   │          │
	│  │  Sync RPC: push/pull outcome, latency       │          │
	│  │  Merge: rejection counts by error kind      │          │
	│  │  Storage: object counts, applied actions    │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Collector (pull model)            │          │
	│  │  - Polls Repository.Status() every 15s      │          │
	│  │  - Polls registered Storages' Count()        │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint                │          │
	│  │  - Path: /metrics                            │          │
	│  │  - Handler: promhttp.Handler()               │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Metrics Catalog

demobit_commits_local_total:
  - Type: Gauge
  - Description: Commits waiting in the local (unpushed) log

demobit_commits_remote_total:
  - Type: Gauge
  - Description: Commits accepted into the remote log

demobit_commit_context_open:
  - Type: Gauge
  - Description: Whether this repository's single commit context is held open

demobit_push_total{outcome}:
  - Type: Counter
  - Description: Push RPC attempts by outcome (ok, stale_push, rejected)

demobit_push_duration_seconds:
  - Type: Histogram
  - Description: Time to push the full local commit backlog

demobit_pull_total{outcome}:
  - Type: Counter
  - Description: Pull RPC attempts by outcome

demobit_pull_duration_seconds:
  - Type: Histogram
  - Description: Time to pull and merge the remote log tail

demobit_merge_rejections_total{kind}:
  - Type: Counter
  - Description: merge_pushed_commit rejections by errs.Kind

demobit_watch_subscribers:
  - Type: Gauge
  - Description: Watch streams currently connected to this server

demobit_action_objects_applied_total{kind,side}:
  - Type: Counter
  - Description: ActionObjects dispatched through a storage hook

demobit_storage_objects_total{storage_id}:
  - Type: Gauge
  - Description: Objects currently held by a storage

# Usage

	import "github.com/mezeipetister/demobit/pkg/metrics"

	timer := metrics.NewTimer()
	err := client.Push(ctx)
	timer.ObserveDuration(metrics.PushDuration)
	if err != nil {
		metrics.PushTotal.WithLabelValues("rejected").Inc()
	} else {
		metrics.PushTotal.WithLabelValues("ok").Inc()
	}

	http.Handle("/metrics", metrics.Handler())

# Design Patterns

Package Init Registration:
  - All metrics registered in init(); MustRegister panics on duplicate names.

Pull over Push:
  - Collector samples gauges on a ticker rather than every call site
    updating them directly, keeping commit-log code free of metrics
    concerns. The one exception is pkg/storage, which increments
    demobit_action_objects_applied_total itself on every applied
    ActionObject.

Timer Pattern:
  - Create a Timer at an operation's start, observe its duration into a
    histogram when the operation finishes.
*/
package metrics
