package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"nstr_report/internal/nostr"
)

// TargetState tracks one relay's progress through a publish run.
type TargetState string

const (
	StatePending  TargetState = "pending"
	StateRetrying TargetState = "retrying"
	StateAcked    TargetState = "acked"
	StateRejected TargetState = "rejected"
	StateFailed   TargetState = "failed"
)

// Outcome is the terminal record for one relay after a publish run.
type Outcome struct {
	Relay    string
	State    TargetState
	Attempts int
	Reason   string
}

// target drives delivery to a single relay. It starts pending, moves to
// retrying on failed attempts, and ends acked, rejected or failed. A
// rejection is terminal: the relay understood the event and declined it.
type target struct {
	relay  string
	dialer *websocket.Dialer
	policy Policy
	logger *slog.Logger

	state    TargetState
	attempts int
}

func newTarget(relay string, dialer *websocket.Dialer, policy Policy, logger *slog.Logger) *target {
	return &target{
		relay:  relay,
		dialer: dialer,
		policy: policy,
		logger: logger.With("relay", relay),
		state:  StatePending,
	}
}

func (t *target) deliver(ctx context.Context, frame []byte, eventID string) Outcome {
	var lastErr error
	for t.attempts = 1; ; t.attempts++ {
		ok, err := t.attempt(ctx, frame, eventID)
		if err == nil {
			if ok.Accepted {
				t.state = StateAcked
				t.logger.Debug("relay acked", "attempt", t.attempts)
				return t.outcome(ok.Reason)
			}
			t.state = StateRejected
			t.logger.Warn("relay rejected event", "reason", ok.Reason)
			return t.outcome(ok.Reason)
		}

		lastErr = err
		if t.attempts >= t.policy.MaxAttempts || ctx.Err() != nil {
			t.state = StateFailed
			return t.outcome(lastErr.Error())
		}

		t.state = StateRetrying
		backoff := t.backoff(t.attempts)
		t.logger.Warn("delivery failed, retrying",
			"attempt", t.attempts,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			t.state = StateFailed
			return t.outcome(ctx.Err().Error())
		case <-time.After(backoff):
		}
	}
}

func (t *target) outcome(reason string) Outcome {
	return Outcome{
		Relay:    t.relay,
		State:    t.state,
		Attempts: t.attempts,
		Reason:   reason,
	}
}

// attempt performs one dial, send, await cycle. It returns the relay's OK
// for our event, or an error when none arrived within the ack timeout.
func (t *target) attempt(ctx context.Context, frame []byte, eventID string) (*nostr.OK, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, t.policy.AckTimeout)
	defer cancel()

	conn, _, err := t.dialer.DialContext(attemptCtx, t.relay, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	// Unblock a pending read when the run is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-attemptCtx.Done():
			conn.Close()
		case <-done:
		}
	}()

	deadline, _ := attemptCtx.Deadline()
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return nil, fmt.Errorf("send event: %w", err)
	}

	for {
		_ = conn.SetReadDeadline(deadline)
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("await ok: %w", err)
		}

		label, fields, err := nostr.DecodeFrame(data)
		if err != nil {
			t.logger.Debug("unparseable relay frame", "error", err)
			continue
		}
		if label != nostr.LabelOK {
			continue
		}
		ok, err := nostr.DecodeOK(fields)
		if err != nil {
			t.logger.Debug("malformed ok frame", "error", err)
			continue
		}
		if ok.EventID != eventID {
			continue
		}
		return ok, nil
	}
}

func (t *target) backoff(attempt int) time.Duration {
	backoff := t.policy.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > t.policy.MaxBackoff {
		backoff = t.policy.MaxBackoff
	}
	return backoff
}
