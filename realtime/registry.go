package realtime

import (
	"sync"

	"go.uber.org/zap"

	"tracking-service/metrics"
)

// Registry maps order ids to their live subscribers.
type Registry struct {
	mu     sync.RWMutex
	subs   map[int64]map[*Subscriber]struct{}
	logger *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		subs:   make(map[int64]map[*Subscriber]struct{}),
		logger: logger,
	}
}

// Register adds sub to its order's group. Registering twice is a no-op.
func (r *Registry) Register(sub *Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	group, ok := r.subs[sub.OrderID]
	if !ok {
		group = make(map[*Subscriber]struct{})
		r.subs[sub.OrderID] = group
	}
	if _, exists := group[sub]; exists {
		return
	}
	group[sub] = struct{}{}
	metrics.ActiveSubscriptions.Inc()
}

// Unregister removes sub. Removing an unknown subscriber is a no-op.
func (r *Registry) Unregister(sub *Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(sub)
}

func (r *Registry) remove(sub *Subscriber) {
	group, ok := r.subs[sub.OrderID]
	if !ok {
		return
	}
	if _, exists := group[sub]; !exists {
		return
	}
	delete(group, sub)
	if len(group) == 0 {
		delete(r.subs, sub.OrderID)
	}
	metrics.ActiveSubscriptions.Dec()
}

// Publish offers f to every subscriber of orderID and returns how many accepted it.
// Subscribers whose queue is full are evicted; already closed ones are pruned quietly. Publishing to an
// order with no subscribers does nothing.
func (r *Registry) Publish(orderID int64, f Frame) int {
	r.mu.RLock()
	group := r.subs[orderID]
	targets := make([]*Subscriber, 0, len(group))
	for sub := range group {
		targets = append(targets, sub)
	}
	r.mu.RUnlock()

	delivered := 0
	var evicted, gone []*Subscriber
	for _, sub := range targets {
		switch {
		case sub.Closed():
			gone = append(gone, sub)
		case sub.offer(f):
			delivered++
		default:
			evicted = append(evicted, sub)
		}
	}

	if len(evicted)+len(gone) > 0 {
		r.mu.Lock()
		for _, sub := range gone {
			r.remove(sub)
		}
		for _, sub := range evicted {
			sub.Close()
			r.remove(sub)
		}
		r.mu.Unlock()
	}

	if len(evicted) > 0 {
		metrics.SubscribersEvictedTotal.Add(float64(len(evicted)))
		r.logger.Warn("Evicted slow tracking subscribers",
			zap.Int64("order_id", orderID),
			zap.Int("count", len(evicted)),
		)
	}
	return delivered
}

// Count returns the number of subscribers for orderID.
func (r *Registry) Count(orderID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs[orderID])
}

// Total returns the number of subscribers across all orders.
func (r *Registry) Total() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, group := range r.subs {
		n += len(group)
	}
	return n
}

// CloseAll closes and removes every subscriber.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for orderID, group := range r.subs {
		for sub := range group {
			sub.Close()
			metrics.ActiveSubscriptions.Dec()
		}
		delete(r.subs, orderID)
	}
}
