// Package irc runs the IRC side of the Slack bridges: one girc client per
// registered server, a manager owning the server pool, and a batching queue
// that groups relayed IRC traffic per Slack channel before posting.
package irc

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ctfcrew/brigade/internal/chat"
)

// QueueEntry is one message waiting to be relayed to Slack.
type QueueEntry struct {
	ID        string
	ChannelID string
	Category  string
	Sender    string
	Message   string
}

// Formatted renders the entry the way bridge traffic appears in Slack.
func (e *QueueEntry) Formatted() string {
	return fmt.Sprintf("_%s_ *%s* : %s", e.Category, e.Sender, e.Message)
}

// MessageQueue batches bridge traffic. With batching disabled every entry is
// posted immediately; enabled, entries are collected and flushed on a fixed
// interval, grouped per destination channel to stay under rate limits.
type MessageQueue struct {
	backend  chat.Backend
	logger   *slog.Logger
	enabled  bool
	interval time.Duration

	mu      sync.Mutex
	pending []*QueueEntry

	stop chan struct{}
	done chan struct{}
}

// NewMessageQueue creates a queue. interval only matters when batching is
// enabled.
func NewMessageQueue(backend chat.Backend, enabled bool, interval time.Duration, logger *slog.Logger) *MessageQueue {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &MessageQueue{
		backend:  backend,
		logger:   logger.With("component", "messagequeue"),
		enabled:  enabled,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Add enqueues a message, or posts it straight away when batching is off.
func (q *MessageQueue) Add(ctx context.Context, channelID, category, sender, message string) {
	entry := &QueueEntry{
		ID:        uuid.NewString(),
		ChannelID: channelID,
		Category:  category,
		Sender:    sender,
		Message:   message,
	}
	if !q.enabled {
		if err := q.backend.PostMessage(ctx, entry.ChannelID, entry.Formatted()); err != nil {
			q.logger.Error("relaying message failed", "channel", entry.ChannelID, "error", err)
		}
		return
	}

	q.mu.Lock()
	q.pending = append(q.pending, entry)
	q.mu.Unlock()
}

// Start launches the flush loop. No-op when batching is disabled.
func (q *MessageQueue) Start() {
	if !q.enabled {
		close(q.done)
		return
	}
	go func() {
		defer close(q.done)
		q.logger.Info("message queue started", "interval", q.interval)
		ticker := time.NewTicker(q.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				q.Flush(context.Background())
			case <-q.stop:
				q.Flush(context.Background())
				q.logger.Info("message queue stopped")
				return
			}
		}
	}()
}

// Flush posts all pending entries, one combined message per channel.
func (q *MessageQueue) Flush(ctx context.Context) {
	q.mu.Lock()
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	grouped := map[string][]string{}
	var order []string
	for _, entry := range pending {
		if _, seen := grouped[entry.ChannelID]; !seen {
			order = append(order, entry.ChannelID)
		}
		grouped[entry.ChannelID] = append(grouped[entry.ChannelID], entry.Formatted())
	}

	for _, channelID := range order {
		text := strings.Join(grouped[channelID], "\n")
		if err := q.backend.PostMessage(ctx, channelID, text); err != nil {
			q.logger.Error("flushing queued messages failed", "channel", channelID, "error", err)
		}
	}
}

// Stop ends the flush loop after a final flush.
func (q *MessageQueue) Stop() {
	if q.enabled {
		close(q.stop)
	}
	<-q.done
}
