package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	application "coai/contexts/incident-governance/council-engine/application"
	"coai/contexts/incident-governance/council-engine/ports"
)

// LogNotifier records terminal transitions as structured log lines. It is the
// notifier the API process uses when no alerting sink is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) NotifySessionFinalized(_ context.Context, notice ports.SessionFinalizedNotice) error {
	application.LayerLogger(n.Logger, "adapter").Info("council session outcome",
		"event", "council_session_outcome_notified",
		"session_id", notice.SessionID,
		"subject_id", notice.SubjectID,
		"final_decision", string(notice.FinalDecision),
		"status", string(notice.Status),
		"approve", notice.Tally.Approve,
		"reject", notice.Tally.Reject,
		"escalate", notice.Tally.Escalate,
	)
	return nil
}

// Broadcaster fans notices out to in-process subscribers, standing in for the
// websocket channel dashboards listen on. Slow subscribers drop notices rather
// than block finalization.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[int]chan ports.SessionFinalizedNotice
	nextID      int
	buffer      int
}

func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = 16
	}
	return &Broadcaster{
		subscribers: make(map[int]chan ports.SessionFinalizedNotice),
		buffer:      buffer,
	}
}

// Subscribe returns a notice stream and a cancel func that closes it.
func (b *Broadcaster) Subscribe() (<-chan ports.SessionFinalizedNotice, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan ports.SessionFinalizedNotice, b.buffer)
	b.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subscribers, id)
			close(ch)
		})
	}
}

func (b *Broadcaster) NotifySessionFinalized(ctx context.Context, notice ports.SessionFinalizedNotice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- notice:
		default:
		}
	}
	return nil
}

// Multi calls every notifier and joins their failures.
type Multi []ports.Notifier

func (m Multi) NotifySessionFinalized(ctx context.Context, notice ports.SessionFinalizedNotice) error {
	var errs []error
	for _, notifier := range m {
		if notifier == nil {
			continue
		}
		if err := notifier.NotifySessionFinalized(ctx, notice); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
