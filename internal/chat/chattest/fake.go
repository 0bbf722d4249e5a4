// Package chattest provides an in-memory chat.Backend for tests. It records
// every outbound call so scenario tests can assert on what the bot said and
// which channels it created.
package chattest

import (
	"context"
	"fmt"
	"sync"

	"github.com/ctfcrew/brigade/internal/chat"
)

// Posted is one recorded outbound message.
type Posted struct {
	ChannelID string
	Text      string
	Reaction  string
	ThreadTS  string
}

// Fake implements chat.Backend against in-memory state.
type Fake struct {
	mu sync.Mutex

	BotIdentity chat.Identity

	// DisplayNames maps user id -> display name for MemberName/Members.
	DisplayNames map[string]string

	// FailCreateChannel makes CreateChannel return an error, for testing
	// the user-facing failure path.
	FailCreateChannel bool

	channels  map[string]*chat.Channel
	members   map[string][]string
	messages  map[string]string // channelID:ts -> text
	posted    []Posted
	createSeq int
}

// NewFake returns an empty fake backend with a default bot identity.
func NewFake() *Fake {
	return &Fake{
		BotIdentity:  chat.Identity{UserID: "U_BOT", Name: "brigade"},
		DisplayNames: map[string]string{},
		channels:     map[string]*chat.Channel{},
		members:      map[string][]string{},
		messages:     map[string]string{},
	}
}

// AddChannel seeds a channel without going through CreateChannel.
func (f *Fake) AddChannel(ch *chat.Channel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels[ch.ID] = ch
}

// SetMessage seeds a fetchable message for GetMessage.
func (f *Fake) SetMessage(channelID, ts, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[channelID+":"+ts] = text
}

// Posted returns a copy of all recorded outbound messages.
func (f *Fake) PostedMessages() []Posted {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Posted, len(f.posted))
	copy(out, f.posted)
	return out
}

// Said reports whether any posted message contains the given substring.
func (f *Fake) Said(substr string) bool {
	for _, p := range f.PostedMessages() {
		if contains(p.Text, substr) {
			return true
		}
	}
	return false
}

// SaidIn reports whether a message containing substr went to channelID.
func (f *Fake) SaidIn(channelID, substr string) bool {
	for _, p := range f.PostedMessages() {
		if p.ChannelID == channelID && contains(p.Text, substr) {
			return true
		}
	}
	return false
}

// LastPosted returns the most recent outbound message, or a zero value.
func (f *Fake) LastPosted() Posted {
	posted := f.PostedMessages()
	if len(posted) == 0 {
		return Posted{}
	}
	return posted[len(posted)-1]
}

// Channel returns a seeded or created channel by id.
func (f *Fake) Channel(id string) *chat.Channel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channels[id]
}

func (f *Fake) PostMessage(_ context.Context, channelID, text string) error {
	f.record(Posted{ChannelID: channelID, Text: text})
	return nil
}

func (f *Fake) PostThreadMessage(_ context.Context, channelID, text, threadTS string) error {
	f.record(Posted{ChannelID: channelID, Text: text, ThreadTS: threadTS})
	return nil
}

func (f *Fake) PostMessageWithReaction(_ context.Context, channelID, text, reaction string) error {
	f.record(Posted{ChannelID: channelID, Text: text, Reaction: reaction})
	return nil
}

func (f *Fake) UpdateMessage(_ context.Context, channelID, timestamp, text string) error {
	f.mu.Lock()
	f.messages[channelID+":"+timestamp] = text
	f.mu.Unlock()
	f.record(Posted{ChannelID: channelID, Text: text, ThreadTS: timestamp})
	return nil
}

func (f *Fake) GetMessage(_ context.Context, channelID, timestamp string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	text, ok := f.messages[channelID+":"+timestamp]
	if !ok {
		return "", fmt.Errorf("no message at %s:%s", channelID, timestamp)
	}
	return text, nil
}

func (f *Fake) CreateChannel(_ context.Context, name string) (*chat.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailCreateChannel {
		return nil, fmt.Errorf("name_taken")
	}
	f.createSeq++
	ch := &chat.Channel{ID: fmt.Sprintf("C_NEW%d", f.createSeq), Name: name}
	f.channels[ch.ID] = ch
	return ch, nil
}

func (f *Fake) RenameChannel(_ context.Context, channelID, newName string) (*chat.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelID]
	if !ok {
		return nil, fmt.Errorf("channel_not_found: %s", channelID)
	}
	ch.Name = newName
	return ch, nil
}

func (f *Fake) ArchiveChannel(_ context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelID]
	if !ok {
		return fmt.Errorf("channel_not_found: %s", channelID)
	}
	ch.IsArchived = true
	return nil
}

func (f *Fake) InviteUser(_ context.Context, channelID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[channelID] = append(f.members[channelID], userID)
	return nil
}

func (f *Fake) KickUser(_ context.Context, channelID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := f.members[channelID]
	for i, u := range users {
		if u == userID {
			f.members[channelID] = append(users[:i], users[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *Fake) SetPurpose(_ context.Context, channelID, purpose string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelID]
	if !ok {
		return fmt.Errorf("channel_not_found: %s", channelID)
	}
	ch.Purpose = purpose
	return nil
}

func (f *Fake) SetTopic(_ context.Context, channelID, topic string) error {
	return nil
}

func (f *Fake) ChannelInfo(_ context.Context, channelID string) (*chat.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelID]
	if !ok {
		return nil, fmt.Errorf("channel_not_found: %s", channelID)
	}
	return ch, nil
}

func (f *Fake) ChannelMembers(_ context.Context, channelID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.members[channelID]...), nil
}

func (f *Fake) ListChannels(_ context.Context) ([]*chat.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*chat.Channel, 0, len(f.channels))
	for _, ch := range f.channels {
		out = append(out, ch)
	}
	return out, nil
}

func (f *Fake) MemberName(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name, ok := f.DisplayNames[userID]; ok {
		return name, nil
	}
	return "", fmt.Errorf("user_not_found: %s", userID)
}

func (f *Fake) Members(_ context.Context) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.DisplayNames))
	for id, name := range f.DisplayNames {
		out[id] = name
	}
	return out, nil
}

func (f *Fake) Identity() chat.Identity { return f.BotIdentity }

func (f *Fake) record(p Posted) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posted = append(f.posted, p)
}

func contains(s, substr string) bool {
	return len(substr) == 0 || (len(s) >= len(substr) && indexOf(s, substr) >= 0)
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
