// Package chat defines the contract the bot expects from a team-messaging
// backend. Command code is written against Backend only; the Slack
// implementation lives in chat/slack and nothing outside that package
// imports the SDK.
package chat

import "context"

// Channel is the backend-neutral view of a chat channel.
type Channel struct {
	ID         string
	Name       string
	Purpose    string
	IsArchived bool
}

// Identity describes the bot's own user, resolved once at startup and
// immutable afterwards.
type Identity struct {
	UserID string
	Name   string
}

// Backend is the surface commands use to talk back to the chat platform.
// All blocking operations take a context.
type Backend interface {
	// PostMessage posts text to a channel. A user id works as the channel
	// id for direct messages.
	PostMessage(ctx context.Context, channelID, text string) error

	// PostThreadMessage posts text as a reply to the message with the
	// given timestamp.
	PostThreadMessage(ctx context.Context, channelID, text, threadTS string) error

	// PostMessageWithReaction posts text and attaches the named emoji
	// reaction to the new message.
	PostMessageWithReaction(ctx context.Context, channelID, text, reaction string) error

	// UpdateMessage replaces the text of an existing message.
	UpdateMessage(ctx context.Context, channelID, timestamp, text string) error

	// GetMessage fetches the text of the message with the given timestamp.
	GetMessage(ctx context.Context, channelID, timestamp string) (string, error)

	// CreateChannel creates a channel with the given name.
	CreateChannel(ctx context.Context, name string) (*Channel, error)

	// RenameChannel renames an existing channel.
	RenameChannel(ctx context.Context, channelID, newName string) (*Channel, error)

	// ArchiveChannel archives a channel.
	ArchiveChannel(ctx context.Context, channelID string) error

	// InviteUser invites a user into a channel.
	InviteUser(ctx context.Context, channelID, userID string) error

	// KickUser removes a user from a channel.
	KickUser(ctx context.Context, channelID, userID string) error

	// SetPurpose stores the channel purpose text.
	SetPurpose(ctx context.Context, channelID, purpose string) error

	// SetTopic stores the channel topic text.
	SetTopic(ctx context.Context, channelID, topic string) error

	// ChannelInfo returns channel metadata including its purpose.
	ChannelInfo(ctx context.Context, channelID string) (*Channel, error)

	// ChannelMembers lists the user ids present in a channel.
	ChannelMembers(ctx context.Context, channelID string) ([]string, error)

	// ListChannels returns all channels visible to the bot, archived ones
	// included.
	ListChannels(ctx context.Context) ([]*Channel, error)

	// MemberName resolves a user id to a display name.
	MemberName(ctx context.Context, userID string) (string, error)

	// Members returns a mapping of user id to display name for the whole
	// workspace.
	Members(ctx context.Context) (map[string]string, error)

	// Identity returns the bot's own identity.
	Identity() Identity
}

// EventKind discriminates inbound events the bot reacts to.
type EventKind string

const (
	// EventCommand is a message addressed to the bot, either via the `!`
	// prefix or an @mention. Text carries the command line with the
	// prefix stripped.
	EventCommand EventKind = "command"

	// EventReaction is an emoji reaction added to a message. Reaction
	// carries the emoji name, Timestamp the reacted-to message.
	EventReaction EventKind = "reaction"

	// EventPurposeChanged fires when someone other than the bot edits a
	// channel purpose. The purpose field doubles as bot state storage, so
	// these edits deserve a warning.
	EventPurposeChanged EventKind = "purpose_changed"

	// EventMessageDeleted fires when a message containing one of the
	// configured watch keywords is deleted.
	EventMessageDeleted EventKind = "message_deleted"

	// EventMessage is an ordinary user message not addressed to the bot.
	// The IRC bridge relays these into connected channels.
	EventMessage EventKind = "message"

	// EventChannelCreated fires when any channel is created in the
	// workspace. ChannelID carries the new channel.
	EventChannelCreated EventKind = "channel_created"
)

// Event is one inbound occurrence from the chat backend.
type Event struct {
	Kind      EventKind
	Text      string
	Reaction  string
	ChannelID string
	UserID    string
	Timestamp string
}

// EventSource is implemented by backends that deliver inbound events.
type EventSource interface {
	// Events returns the inbound event stream. The channel closes when
	// the backend shuts down.
	Events() <-chan Event
}
