package slack

import (
	"context"
	"strings"

	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/ctfcrew/brigade/internal/chat"
)

// handleEvents drains the socket-mode stream and translates Events API
// payloads into chat events. Every request is acked before processing so
// Slack does not redeliver on slow handlers.
func (b *Backend) handleEvents(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-b.socket.Events:
			if !ok {
				return
			}
			switch event.Type {
			case socketmode.EventTypeConnecting:
				b.logger.Info("connecting to slack")
			case socketmode.EventTypeConnectionError:
				b.logger.Error("slack connection failed", "error", event.Data)
			case socketmode.EventTypeConnected:
				b.logger.Info("connected to slack")
			case socketmode.EventTypeEventsAPI:
				apiEvent, ok := event.Data.(slackevents.EventsAPIEvent)
				if !ok {
					continue
				}
				if event.Request != nil {
					b.socket.Ack(*event.Request)
				}
				b.handleEventsAPI(ctx, apiEvent)
			default:
				if event.Request != nil {
					b.socket.Ack(*event.Request)
				}
			}
		}
	}
}

func (b *Backend) handleEventsAPI(ctx context.Context, apiEvent slackevents.EventsAPIEvent) {
	if apiEvent.Type != slackevents.CallbackEvent {
		return
	}
	switch ev := apiEvent.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		b.handleMessage(ctx, ev)
	case *slackevents.AppMentionEvent:
		b.handleMention(ctx, ev)
	case *slackevents.ReactionAddedEvent:
		b.handleReaction(ctx, ev)
	case *slackevents.ChannelCreatedEvent:
		b.emit(ctx, chat.Event{
			Kind:      chat.EventChannelCreated,
			ChannelID: ev.Channel.ID,
			UserID:    ev.Channel.Creator,
		})
	}
}

func (b *Backend) handleMessage(ctx context.Context, ev *slackevents.MessageEvent) {
	switch ev.SubType {
	case "message_deleted":
		b.handleDeleted(ctx, ev)
		return
	case "channel_purpose", "group_purpose":
		b.handlePurposeChanged(ctx, ev)
		return
	case "":
	default:
		return
	}

	// Bot traffic, our own messages included, never carries commands.
	if ev.BotID != "" || ev.User == "" || ev.User == b.Identity().UserID {
		return
	}

	text, ok := b.commandText(ev.Text)
	if !ok {
		// Plain chatter still matters to the IRC bridge.
		b.emit(ctx, chat.Event{
			Kind:      chat.EventMessage,
			Text:      ev.Text,
			ChannelID: ev.Channel,
			UserID:    ev.User,
			Timestamp: ev.TimeStamp,
		})
		return
	}
	b.emit(ctx, chat.Event{
		Kind:      chat.EventCommand,
		Text:      text,
		ChannelID: ev.Channel,
		UserID:    ev.User,
		Timestamp: ev.TimeStamp,
	})
}

// handleMention covers channels where the bot only receives mention events.
// Messages that also arrive as plain message events are deduplicated by the
// ! prefix check: a mention-addressed command never starts with `!`.
func (b *Backend) handleMention(ctx context.Context, ev *slackevents.AppMentionEvent) {
	if ev.User == "" || ev.User == b.Identity().UserID {
		return
	}
	text := strings.TrimSpace(ev.Text)
	mention := "<@" + b.Identity().UserID + ">"
	if !strings.HasPrefix(text, mention) {
		return
	}
	text = strings.TrimSpace(strings.TrimPrefix(text, mention))
	if text == "" || strings.HasPrefix(text, "!") {
		return
	}
	b.emit(ctx, chat.Event{
		Kind:      chat.EventCommand,
		Text:      text,
		ChannelID: ev.Channel,
		UserID:    ev.User,
		Timestamp: ev.TimeStamp,
	})
}

func (b *Backend) handleReaction(ctx context.Context, ev *slackevents.ReactionAddedEvent) {
	if ev.User == b.Identity().UserID {
		return
	}
	b.emit(ctx, chat.Event{
		Kind:      chat.EventReaction,
		Reaction:  ev.Reaction,
		ChannelID: ev.Item.Channel,
		UserID:    ev.User,
		Timestamp: ev.Item.Timestamp,
	})
}

// handlePurposeChanged forwards purpose edits made by anyone but the bot.
// The purpose field stores bot state, so the server warns the channel.
func (b *Backend) handlePurposeChanged(ctx context.Context, ev *slackevents.MessageEvent) {
	if ev.User == "" || ev.User == b.Identity().UserID {
		return
	}
	b.emit(ctx, chat.Event{
		Kind:      chat.EventPurposeChanged,
		Text:      ev.Text,
		ChannelID: ev.Channel,
		UserID:    ev.User,
		Timestamp: ev.TimeStamp,
	})
}

func (b *Backend) handleDeleted(ctx context.Context, ev *slackevents.MessageEvent) {
	if ev.PreviousMessage == nil {
		return
	}
	prev := ev.PreviousMessage
	if prev.BotID != "" || prev.User == b.Identity().UserID {
		return
	}
	b.emit(ctx, chat.Event{
		Kind:      chat.EventMessageDeleted,
		Text:      prev.Text,
		ChannelID: ev.Channel,
		UserID:    prev.User,
		Timestamp: prev.Timestamp,
	})
}

// commandText reports whether a message is addressed to the bot and returns
// the command line with the addressing stripped. Both the `!` prefix and a
// leading @mention count.
func (b *Backend) commandText(raw string) (string, bool) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "!") {
		text = strings.TrimSpace(strings.TrimPrefix(text, "!"))
		return text, text != ""
	}
	mention := "<@" + b.Identity().UserID + ">"
	if strings.HasPrefix(text, mention) {
		text = strings.TrimSpace(strings.TrimPrefix(text, mention))
		return text, text != ""
	}
	return "", false
}

// emit hands an event to the consumer without ever blocking the socket
// loop. A full buffer means the consumer is wedged; dropping with a log
// beats deadlocking the connection.
func (b *Backend) emit(_ context.Context, event chat.Event) {
	select {
	case b.events <- event:
	default:
		b.logger.Warn("event buffer full, dropping event", "kind", event.Kind, "channel", event.ChannelID)
	}
}
