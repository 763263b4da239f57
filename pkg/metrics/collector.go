package metrics

import "time"

// StatusSource is the narrow slice of pkg/repository.Repository a
// Collector needs. It is expressed as primitives rather than a shared
// struct type so this package never has to import pkg/repository, which
// in turn depends on pkg/storage — a package this package's ActionObject
// counter is wired into. Any type that can report its own commit-log
// depth satisfies this without either package importing the other.
type StatusSource interface {
	CommitLogStatus() (localCommits, remoteCommits int, commitContextOpen bool, err error)
}

// StorageCounter is the narrow slice of pkg/storage.Storage a Collector
// needs: its id and its current object count.
type StorageCounter interface {
	StorageID() string
	Count() int
}

// Collector periodically samples a repository's commit-log depth and any
// registered storages' object counts into the package's gauges, the way a
// Prometheus exporter is expected to poll rather than be pushed to on
// every call.
type Collector struct {
	repo     StatusSource
	storages []StorageCounter
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector builds a Collector over repo, reporting storages alongside
// it. The default sampling interval is 15s, matching the documented
// Prometheus scrape cadence.
func NewCollector(repo StatusSource, storages ...StorageCounter) *Collector {
	return &Collector{
		repo:     repo,
		storages: storages,
		interval: 15 * time.Second,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the sampling loop in a background goroutine.
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts the sampling loop.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	local, remote, ctxOpen, err := c.repo.CommitLogStatus()
	if err != nil {
		return
	}
	CommitsLocalTotal.Set(float64(local))
	CommitsRemoteTotal.Set(float64(remote))
	if ctxOpen {
		CommitContextOpen.Set(1)
	} else {
		CommitContextOpen.Set(0)
	}

	for _, s := range c.storages {
		StorageObjectsTotal.WithLabelValues(s.StorageID()).Set(float64(s.Count()))
	}
}
