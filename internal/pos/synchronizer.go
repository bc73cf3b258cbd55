package pos

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"

	"github.com/dhabaclub/dhaba/internal/event"
)

// Default polling cadences. Polling is a correctness backstop and keeps
// running even while the push channel is connected.
const (
	DashboardPollInterval    = 30 * time.Second
	TableSessionPollInterval = 5 * time.Second
)

// transportCloser is the optional close capability of a subscriber. The
// teardown path closes the underlying transport, not just the subscription.
type transportCloser interface {
	Close() error
}

// Synchronizer keeps the order collection convergent with server state: one
// shared push subscription per client session plus independent timed
// refreshes. Whichever resolves last wins; there are no version numbers to
// compare.
type Synchronizer struct {
	subscriber events.Subscriber
	handler    *OrderUpdateSubscriber
	collection *OrderCollection
	onError    func(error)
	logger     aqm.Logger

	mu         sync.Mutex
	connected  bool
	connecting bool
	tornDown   bool
	stop       chan struct{}
	wg         sync.WaitGroup
}

// WithSessionToken wraps a snapshot fetch so background polls carry a live
// bearer credential. With nobody signed in the fetch reports ErrNoSession
// and the caller skips the tick instead of going out unauthenticated and
// tripping the wholesale 401 invalidation.
func WithSessionToken(sessions *SessionStore, fetch func(context.Context) ([]Order, error)) func(context.Context) ([]Order, error) {
	return func(ctx context.Context) ([]Order, error) {
		token, ok := sessions.ActiveToken()
		if !ok {
			return nil, ErrNoSession
		}
		return fetch(WithToken(ctx, token))
	}
}

func NewSynchronizer(subscriber events.Subscriber, handler *OrderUpdateSubscriber, collection *OrderCollection, onError func(error), logger aqm.Logger) *Synchronizer {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	if onError == nil {
		onError = func(error) {}
	}
	return &Synchronizer{
		subscriber: subscriber,
		handler:    handler,
		collection: collection,
		onError:    onError,
		logger:     logger,
		stop:       make(chan struct{}),
	}
}

// Connect subscribes to the order-update topic. Idempotent: connecting
// while connected is a no-op, never a reconnect. A connect failure is
// reported and the synchronizer stays in polling-only mode.
func (s *Synchronizer) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.tornDown {
		s.mu.Unlock()
		return fmt.Errorf("synchronizer already torn down")
	}
	if s.connected || s.connecting {
		s.mu.Unlock()
		return nil
	}
	s.connecting = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.connecting = false
		s.mu.Unlock()
	}()

	if s.subscriber == nil {
		s.logger.Info("push channel not configured, polling only")
		return nil
	}

	if err := s.subscriber.Subscribe(ctx, event.OrderUpdatesTopic, s.handler.HandleEvent); err != nil {
		wrapped := &TransportError{Err: err}
		s.onError(wrapped)
		return wrapped
	}

	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()

	s.logger.Info("subscribed to order updates", "topic", event.OrderUpdatesTopic)
	return nil
}

// Connected reports whether the push subscription is active.
func (s *Synchronizer) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// StartPolling launches a timed full-snapshot refresh. Results arriving
// after teardown are discarded before they can touch the collection.
func (s *Synchronizer) StartPolling(ctx context.Context, name string, interval time.Duration, fetch func(context.Context) ([]Order, error)) {
	s.mu.Lock()
	if s.tornDown {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				orders, err := fetch(ctx)
				if err != nil {
					if errors.Is(err, ErrNoSession) {
						// Nobody signed in; nothing to poll with.
						s.logger.Debug("poll skipped", "poller", name)
						continue
					}
					s.logger.Info("poll refresh failed", "poller", name, "error", err)
					s.onError(err)
					continue
				}
				if s.isTornDown() {
					// The view is gone; a late response must not mutate state.
					return
				}
				s.collection.ReplaceAll(orders)
				s.logger.Debug("poll refresh applied", "poller", name, "orders", len(orders))
			}
		}
	}()
}

// StartTablePolling launches the table-session backstop: every open cart's
// snapshot is re-fetched on a timer so the active order and completed-count
// stay fresh between user actions. Failures are retried on the next tick;
// the interactive paths surface their own errors.
func (s *Synchronizer) StartTablePolling(ctx context.Context, interval time.Duration, carts *CartStore, fetch func(ctx context.Context, tableID string) (*TableSnapshot, error)) {
	s.mu.Lock()
	if s.tornDown {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, tableID := range carts.TableIDs() {
					snapshot, err := fetch(ctx, tableID)
					if err != nil {
						if errors.Is(err, ErrNoSession) {
							break
						}
						s.logger.Debug("table poll failed", "table_id", tableID, "error", err)
						continue
					}
					if s.isTornDown() {
						return
					}
					if cart, cerr := carts.ForTable(tableID); cerr == nil {
						cart.ApplySnapshot(*snapshot)
					}
				}
			}
		}
	}()
}

// Refresh applies a full snapshot immediately (user-triggered refresh path).
// It funnels through the same replacement primitive as polling.
func (s *Synchronizer) Refresh(ctx context.Context, fetch func(context.Context) ([]Order, error)) error {
	orders, err := fetch(ctx)
	if err != nil {
		s.onError(err)
		return err
	}
	if s.isTornDown() {
		return fmt.Errorf("synchronizer torn down")
	}
	s.collection.ReplaceAll(orders)
	return nil
}

// Teardown cancels the pollers and the subscription together and closes the
// underlying transport. Safe to call more than once.
func (s *Synchronizer) Teardown() {
	s.mu.Lock()
	if s.tornDown {
		s.mu.Unlock()
		return
	}
	s.tornDown = true
	s.connected = false
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()

	if closer, ok := s.subscriber.(transportCloser); ok && closer != nil {
		if err := closer.Close(); err != nil {
			s.logger.Info("error closing push transport", "error", err)
		}
	}

	s.logger.Info("synchronizer torn down")
}

func (s *Synchronizer) isTornDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tornDown
}

// Start implements the lifecycle hook: connect the push channel.
func (s *Synchronizer) Start(ctx context.Context) error {
	// Connect failures are non-fatal; polling covers the gap.
	if err := s.Connect(ctx); err != nil {
		s.logger.Info("push channel unavailable at startup", "error", err)
	}
	return nil
}

// Stop implements the lifecycle hook.
func (s *Synchronizer) Stop(ctx context.Context) error {
	s.Teardown()
	return nil
}
