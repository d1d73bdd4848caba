// Package activity records the mutations performed through the bridge.
// Events fan out to any number of sinks: a Kafka topic for downstream
// consumers and a Postgres table the bridge can query back.
package activity

import (
	"context"
	"errors"
)

// Sink receives activity events.
type Sink interface {
	Record(ctx context.Context, e Event) error
}

// Store is a Sink that can also list what it recorded.
type Store interface {
	Sink
	List(ctx context.Context, accountID string, limit int) ([]Event, error)
}

// MultiSink records every event to each of its sinks.
type MultiSink []Sink

// Record calls every sink and joins their errors.
func (m MultiSink) Record(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
var Discard Sink = discard{}

type discard struct{}

func (discard) Record(context.Context, Event) error { return nil }
