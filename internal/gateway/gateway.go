// Package gateway is the outbound messaging capability. The engine only
// depends on Sender; the Gupshup client is the production implementation.
package gateway

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
)

// Message is one outbound text bound for a single destination.
type Message struct {
	To   string
	Text string
}

// Sender delivers a text to a destination in E.164 digit form.
type Sender interface {
	Send(ctx context.Context, destination, text string) error
}

// TransportError reports a delivery failure at the gateway. A transport
// failure never rolls back a committed state transition.
type TransportError struct {
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transport error (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SendAll delivers every message, aggregating failures instead of stopping
// at the first one.
func SendAll(ctx context.Context, s Sender, msgs []Message) error {
	var result *multierror.Error
	for _, m := range msgs {
		if err := s.Send(ctx, m.To, m.Text); err != nil {
			result = multierror.Append(result, fmt.Errorf("send to %s: %w", m.To, err))
		}
	}
	return result.ErrorOrNil()
}

// Broadcast builds one message per destination. Destinations are deduplicated
// and sorted so delivery order is stable.
func Broadcast(to map[string]bool, text string) []Message {
	ids := make([]string, 0, len(to))
	for id := range to {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	msgs := make([]Message, 0, len(ids))
	for _, id := range ids {
		msgs = append(msgs, Message{To: id, Text: text})
	}
	return msgs
}
