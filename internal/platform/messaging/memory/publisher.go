// Package memory is an in-process Publisher used for local runs and tests.
package memory

import (
	"context"
	"sync"

	"composite/internal/platform/messaging"
	"composite/pkg/platform/sentinel"
)

// Record is a message captured with its channel.
type Record struct {
	Channel string
	Message messaging.Message
}

// Publisher keeps every published message in submission order.
type Publisher struct {
	mu      sync.Mutex
	records []Record
	closed  bool
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

func (p *Publisher) Publish(_ context.Context, channel string, msg messaging.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return sentinel.ErrClosed
	}
	p.records = append(p.records, Record{Channel: channel, Message: msg})
	return nil
}

// Messages returns the messages published on channel, oldest first.
func (p *Publisher) Messages(channel string) []messaging.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []messaging.Message
	for _, r := range p.records {
		if r.Channel == channel {
			out = append(out, r.Message)
		}
	}
	return out
}

// Records returns everything published, oldest first.
func (p *Publisher) Records() []Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Record(nil), p.records...)
}

// Reset drops captured messages.
func (p *Publisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
