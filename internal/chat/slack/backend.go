// Package slack implements chat.Backend and chat.EventSource against the
// Slack Web API and Socket Mode. Nothing outside this package touches the
// Slack SDK.
package slack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"

	"github.com/ctfcrew/brigade/internal/chat"
)

// reconnectDelay spaces out socket-mode restart attempts after the client
// gives up on its own.
const reconnectDelay = 5 * time.Second

// Config carries the two Slack tokens: xoxb- for Web API calls, xapp- for
// Socket Mode.
type Config struct {
	BotToken string
	AppToken string
}

// Backend is the Slack implementation of chat.Backend. Inbound traffic is
// delivered through Events.
type Backend struct {
	client *slack.Client
	socket *socketmode.Client
	logger *slog.Logger

	events chan chat.Event

	mu       sync.RWMutex
	identity chat.Identity

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds the backend. Start must be called before events flow.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	client := slack.New(cfg.BotToken, slack.OptionAppLevelToken(cfg.AppToken))
	return &Backend{
		client: client,
		socket: socketmode.New(client),
		logger: logger.With("component", "slack"),
		events: make(chan chat.Event, 100),
	}
}

// Start resolves the bot identity and launches the socket-mode loops. The
// identity is immutable after this point.
func (b *Backend) Start(ctx context.Context) error {
	auth, err := b.client.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth: %w", err)
	}
	b.mu.Lock()
	b.identity = chat.Identity{UserID: auth.UserID, Name: auth.User}
	b.mu.Unlock()
	b.logger.Info("authenticated", "user_id", auth.UserID, "name", auth.User)

	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	b.wg.Add(2)
	go b.handleEvents(runCtx)
	go b.run(runCtx)
	return nil
}

// Stop shuts down the socket connection and closes the event stream.
func (b *Backend) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
	close(b.events)
}

// Events returns the inbound event stream.
func (b *Backend) Events() <-chan chat.Event {
	return b.events
}

// Identity returns the bot's own identity.
func (b *Backend) Identity() chat.Identity {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.identity
}

// run keeps the socket-mode connection alive. The client reconnects on its
// own; if it gives up entirely we restart it after a short delay instead of
// terminating the process.
func (b *Backend) run(ctx context.Context) {
	defer b.wg.Done()
	for {
		err := b.socket.RunContext(ctx)
		if ctx.Err() != nil {
			return
		}
		b.logger.Error("socket mode exited, restarting", "error", err)
		select {
		case <-time.After(reconnectDelay):
		case <-ctx.Done():
			return
		}
	}
}

// withRetry runs a Web API call and retries it once after the server-advised
// backoff when Slack rate-limits it.
func (b *Backend) withRetry(ctx context.Context, fn func() error) error {
	err := fn()
	var rle *slack.RateLimitedError
	if !errors.As(err, &rle) {
		return err
	}
	b.logger.Warn("rate limited, retrying once", "retry_after", rle.RetryAfter)
	select {
	case <-time.After(rle.RetryAfter):
	case <-ctx.Done():
		return ctx.Err()
	}
	return fn()
}

func (b *Backend) PostMessage(ctx context.Context, channelID, text string) error {
	return b.withRetry(ctx, func() error {
		_, _, err := b.client.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
		return err
	})
}

func (b *Backend) PostThreadMessage(ctx context.Context, channelID, text, threadTS string) error {
	return b.withRetry(ctx, func() error {
		_, _, err := b.client.PostMessageContext(ctx, channelID,
			slack.MsgOptionText(text, false), slack.MsgOptionTS(threadTS))
		return err
	})
}

func (b *Backend) PostMessageWithReaction(ctx context.Context, channelID, text, reaction string) error {
	var timestamp string
	err := b.withRetry(ctx, func() error {
		var err error
		_, timestamp, err = b.client.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
		return err
	})
	if err != nil {
		return err
	}
	ref := slack.ItemRef{Channel: channelID, Timestamp: timestamp}
	if err := b.client.AddReactionContext(ctx, reaction, ref); err != nil {
		b.logger.Warn("adding reaction failed", "reaction", reaction, "error", err)
	}
	return nil
}

func (b *Backend) UpdateMessage(ctx context.Context, channelID, timestamp, text string) error {
	return b.withRetry(ctx, func() error {
		_, _, _, err := b.client.UpdateMessageContext(ctx, channelID, timestamp, slack.MsgOptionText(text, false))
		return err
	})
}

func (b *Backend) GetMessage(ctx context.Context, channelID, timestamp string) (string, error) {
	var text string
	err := b.withRetry(ctx, func() error {
		resp, err := b.client.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
			ChannelID: channelID,
			Latest:    timestamp,
			Inclusive: true,
			Limit:     1,
		})
		if err != nil {
			return err
		}
		if len(resp.Messages) == 0 {
			return fmt.Errorf("no message at %s:%s", channelID, timestamp)
		}
		text = resp.Messages[0].Text
		return nil
	})
	return text, err
}

func (b *Backend) CreateChannel(ctx context.Context, name string) (*chat.Channel, error) {
	var created *slack.Channel
	err := b.withRetry(ctx, func() error {
		var err error
		created, err = b.client.CreateConversationContext(ctx, slack.CreateConversationParams{
			ChannelName: name,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create channel %s: %w", name, err)
	}
	return convertChannel(created), nil
}

func (b *Backend) RenameChannel(ctx context.Context, channelID, newName string) (*chat.Channel, error) {
	var renamed *slack.Channel
	err := b.withRetry(ctx, func() error {
		var err error
		renamed, err = b.client.RenameConversationContext(ctx, channelID, newName)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("rename channel %s: %w", channelID, err)
	}
	return convertChannel(renamed), nil
}

func (b *Backend) ArchiveChannel(ctx context.Context, channelID string) error {
	return b.withRetry(ctx, func() error {
		return b.client.ArchiveConversationContext(ctx, channelID)
	})
}

func (b *Backend) InviteUser(ctx context.Context, channelID, userID string) error {
	return b.withRetry(ctx, func() error {
		_, err := b.client.InviteUsersToConversationContext(ctx, channelID, userID)
		return err
	})
}

func (b *Backend) KickUser(ctx context.Context, channelID, userID string) error {
	return b.withRetry(ctx, func() error {
		return b.client.KickUserFromConversationContext(ctx, channelID, userID)
	})
}

func (b *Backend) SetPurpose(ctx context.Context, channelID, purpose string) error {
	return b.withRetry(ctx, func() error {
		_, err := b.client.SetPurposeOfConversationContext(ctx, channelID, purpose)
		return err
	})
}

func (b *Backend) SetTopic(ctx context.Context, channelID, topic string) error {
	return b.withRetry(ctx, func() error {
		_, err := b.client.SetTopicOfConversationContext(ctx, channelID, topic)
		return err
	})
}

func (b *Backend) ChannelInfo(ctx context.Context, channelID string) (*chat.Channel, error) {
	var info *slack.Channel
	err := b.withRetry(ctx, func() error {
		var err error
		info, err = b.client.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{
			ChannelID: channelID,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("channel info %s: %w", channelID, err)
	}
	return convertChannel(info), nil
}

func (b *Backend) ChannelMembers(ctx context.Context, channelID string) ([]string, error) {
	var members []string
	cursor := ""
	for {
		var (
			page []string
			next string
		)
		err := b.withRetry(ctx, func() error {
			var err error
			page, next, err = b.client.GetUsersInConversationContext(ctx, &slack.GetUsersInConversationParameters{
				ChannelID: channelID,
				Cursor:    cursor,
				Limit:     200,
			})
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("channel members %s: %w", channelID, err)
		}
		members = append(members, page...)
		if next == "" {
			return members, nil
		}
		cursor = next
	}
}

func (b *Backend) ListChannels(ctx context.Context) ([]*chat.Channel, error) {
	var channels []*chat.Channel
	cursor := ""
	for {
		var (
			page []slack.Channel
			next string
		)
		err := b.withRetry(ctx, func() error {
			var err error
			page, next, err = b.client.GetConversationsContext(ctx, &slack.GetConversationsParameters{
				Cursor: cursor,
				Limit:  200,
				Types:  []string{"public_channel", "private_channel"},
			})
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("list channels: %w", err)
		}
		for i := range page {
			channels = append(channels, convertChannel(&page[i]))
		}
		if next == "" {
			return channels, nil
		}
		cursor = next
	}
}

func (b *Backend) MemberName(ctx context.Context, userID string) (string, error) {
	var user *slack.User
	err := b.withRetry(ctx, func() error {
		var err error
		user, err = b.client.GetUserInfoContext(ctx, userID)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("user info %s: %w", userID, err)
	}
	return userDisplayName(user), nil
}

func (b *Backend) Members(ctx context.Context) (map[string]string, error) {
	var users []slack.User
	err := b.withRetry(ctx, func() error {
		var err error
		users, err = b.client.GetUsersContext(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	members := make(map[string]string, len(users))
	for i := range users {
		members[users[i].ID] = userDisplayName(&users[i])
	}
	return members, nil
}

func convertChannel(ch *slack.Channel) *chat.Channel {
	return &chat.Channel{
		ID:         ch.ID,
		Name:       ch.Name,
		Purpose:    ch.Purpose.Value,
		IsArchived: ch.IsArchived,
	}
}

func userDisplayName(user *slack.User) string {
	if name := strings.TrimSpace(user.Profile.DisplayName); name != "" {
		return name
	}
	return user.Name
}
