// Package publisher delivers one signed event to a set of relays
// concurrently and aggregates the per-relay outcomes into a single result.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"nstr_report/internal/nostr"
)

// ErrQuorumNotReached marks a run whose ack count stayed below the
// configured minimum.
var ErrQuorumNotReached = errors.New("relay ack quorum not reached")

// Policy bundles the delivery knobs for one run. MinAcks is the success
// threshold for the whole run; it comes from configuration, never from this
// package. Deadline bounds total wall clock time across all retries.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	AckTimeout     time.Duration
	Deadline       time.Duration
	MinAcks        int
}

// Result aggregates one publish run across all relays.
type Result struct {
	Acked    int
	Rejected int
	Failed   int
	Success  bool
	Outcomes []Outcome
}

type Publisher struct {
	dialer *websocket.Dialer
	policy Policy
	logger *slog.Logger
}

func New(policy Policy, logger *slog.Logger) *Publisher {
	return &Publisher{
		dialer: websocket.DefaultDialer,
		policy: policy,
		logger: logger,
	}
}

// Publish fans the event out to every relay at once and collects their
// outcomes. It finalizes once the quorum is reached, every relay is
// terminal, or the run deadline expires, whichever happens first; attempts
// still pending at that point are cancelled.
func (p *Publisher) Publish(ctx context.Context, event *nostr.Event, relays []string) (*Result, error) {
	if len(relays) == 0 {
		return nil, errors.New("no relays configured")
	}
	if event.ID == "" || event.Sig == "" {
		return nil, errors.New("event is not signed")
	}

	frame, err := nostr.EventFrame(event)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if p.policy.Deadline > 0 {
		runCtx, cancel = context.WithTimeout(ctx, p.policy.Deadline)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	results := make(chan Outcome, len(relays))
	for _, relay := range relays {
		go func(relay string) {
			results <- newTarget(relay, p.dialer, p.policy, p.logger).deliver(runCtx, frame, event.ID)
		}(relay)
	}

	res := &Result{Outcomes: make([]Outcome, 0, len(relays))}
	for range relays {
		o := <-results
		res.Outcomes = append(res.Outcomes, o)
		switch o.State {
		case StateAcked:
			res.Acked++
		case StateRejected:
			res.Rejected++
		default:
			res.Failed++
		}

		if res.Acked >= p.policy.MinAcks {
			// Quorum reached; stop the stragglers.
			cancel()
		}
	}

	res.Success = res.Acked >= p.policy.MinAcks
	p.logger.Info("publish finished",
		"event_id", event.ID,
		"acked", res.Acked,
		"rejected", res.Rejected,
		"failed", res.Failed,
		"success", res.Success,
	)
	return res, nil
}
