// Package watch broadcasts newly merged commits to streaming Watch RPC
// subscribers. It is the commit-domain counterpart of the teacher's
// cluster-event Broker: a buffered fan-out from one publisher (the
// server's merge path) to many subscribers (connected Watch streams).
package watch

import (
	"sync"

	"github.com/mezeipetister/demobit/pkg/commit"
)

// Subscriber is a channel that receives newly merged commits.
type Subscriber chan *commit.Commit

// Broker fans out merged commits to every active Watch subscriber.
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	commitCh    chan *commit.Commit
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewBroker creates a Broker. Call Start before publishing.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		commitCh:    make(chan *commit.Commit, 100),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's distribution loop.
func (b *Broker) Start() {
	go b.run()
}

// Stop shuts the broker down; Publish becomes a no-op afterward.
func (b *Broker) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// Subscribe registers a new Watch stream and returns its channel.
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a Watch stream's subscription.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	close(sub)
}

// Publish announces a newly merged commit to every subscriber.
func (b *Broker) Publish(c *commit.Commit) {
	select {
	case b.commitCh <- c:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case c := <-b.commitCh:
			b.broadcast(c)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(c *commit.Commit) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- c:
		default:
			// subscriber buffer full; Watch is best-effort, clients fall
			// back to periodic Pull if they miss a broadcast.
		}
	}
}

// SubscriberCount reports the number of active Watch subscriptions, for
// pkg/metrics to poll.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
