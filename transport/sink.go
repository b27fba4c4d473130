// Package transport delivers simulator batches to TCP clients, serial
// ports, UDP listeners and message brokers.
package transport

import (
	"context"
	"io"
	"strings"

	"github.com/landyrev/simple-nmea-simulator/simulator"
)

// LineEnding terminates every sentence on the wire.
const LineEnding = "\r\n"

// Sink receives every batch of a subscription.
type Sink interface {
	Send(ctx context.Context, batch simulator.Batch) error
	Close() error
}

// Broadcaster hands out batch subscriptions. *simulator.Simulator
// implements it.
type Broadcaster interface {
	Subscribe() *simulator.Subscription
	Unsubscribe(id string)
}

// Lines renders a batch as CRLF terminated sentences.
func Lines(batch simulator.Batch) []byte {
	var b strings.Builder
	for _, s := range batch.Sentences {
		b.WriteString(s)
		b.WriteString(LineEnding)
	}
	return []byte(b.String())
}

// Pump delivers batches from sub to sink until the subscription closes, ctx
// is cancelled or a send fails. A closed subscription returns nil.
func Pump(ctx context.Context, sub *simulator.Subscription, sink Sink) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := sink.Send(ctx, batch); err != nil {
				return err
			}
		}
	}
}

// Attach keeps sink subscribed to b across simulator runs. When a run ends
// and its subscription closes, Attach subscribes again for the next run. It
// returns nil once ctx is cancelled, or the first send error.
func Attach(ctx context.Context, b Broadcaster, sink Sink) error {
	for {
		sub := b.Subscribe()
		err := Pump(ctx, sub, sink)
		b.Unsubscribe(sub.ID)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// StreamSink writes CRLF terminated sentences to a byte stream such as
// stdout or a serial port.
type StreamSink struct {
	w io.Writer
}

// NewStreamSink wraps w. If w is an io.Closer, Close closes it.
func NewStreamSink(w io.Writer) *StreamSink {
	return &StreamSink{w: w}
}

// Send writes one batch.
func (s *StreamSink) Send(_ context.Context, batch simulator.Batch) error {
	_, err := s.w.Write(Lines(batch))
	return err
}

// Close closes the underlying writer when it supports closing.
func (s *StreamSink) Close() error {
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
