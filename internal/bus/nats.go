package bus

import (
	"context"
	"fmt"

	"github.com/aquamarinepk/aqm/events"
	"github.com/nats-io/nats.go"
)

// NATSSubscriber adapts a NATS connection to the events.Subscriber interface.
// A disconnect is not fatal: it is reported through the error callback and the
// caller keeps running in polling-only mode.
type NATSSubscriber struct {
	conn  *nats.Conn
	onErr func(error)
}

// NewNATSSubscriber connects to NATS. The onErr callback receives transport
// errors (disconnects, async subscription errors); it may be nil.
func NewNATSSubscriber(url string, onErr func(error)) (*NATSSubscriber, error) {
	report := onErr
	if report == nil {
		report = func(error) {}
	}

	conn, err := nats.Connect(url,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				report(fmt.Errorf("push channel disconnected: %w", err))
			}
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			report(fmt.Errorf("push channel error: %w", err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSSubscriber{conn: conn, onErr: report}, nil
}

func (s *NATSSubscriber) Subscribe(ctx context.Context, topic string, handler events.HandlerFunc) error {
	_, err := s.conn.Subscribe(topic, func(msg *nats.Msg) {
		if err := handler(ctx, msg.Data); err != nil {
			s.onErr(err)
		}
	})
	return err
}

// Close drains the subscription and closes the underlying transport. Both must
// go down together or sockets leak on view teardown.
func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}

// NATSPublisher is the publish side of the same topic. The client core only
// publishes in tests and tooling; production pushes come from the order
// service.
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	return p.conn.Publish(topic, msg)
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}
