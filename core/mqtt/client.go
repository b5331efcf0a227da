// Package mqtt declares how solve results leave the process. The paho
// implementation lives in infra/mqtt.
package mqtt

import (
	"context"
	"time"

	"github.com/kilianp07/flownet/core/problem"
)

// Message is the payload published for one solve.
type Message struct {
	RunID     string           `json:"run_id"`
	Problem   string           `json:"problem"`
	Timestamp time.Time        `json:"timestamp"`
	Duration  time.Duration    `json:"duration_ns"`
	Solution  problem.Solution `json:"solution"`
}

// Publisher delivers solve results to subscribers.
type Publisher interface {
	// Publish sends msg, retrying as configured, until it succeeds, retries
	// are exhausted or ctx ends.
	Publish(ctx context.Context, msg Message) error
	Close()
}

// NopPublisher drops every message.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Message) error { return nil }
func (NopPublisher) Close()                                 {}
