package models

// Tournament is an informal competition between team members ("pwn-off",
// "web-off", ...). Identity is the Slack channel created for it.
type Tournament struct {
	ChannelID     string            `json:"channel_id"`
	Name          string            `json:"name"`
	Category      string            `json:"category"`
	Organizer     string            `json:"organizer"` // user id, the only one who may manage it
	AcceptSignups bool              `json:"accept_signups"`
	Finished      bool              `json:"finished"`
	Players       map[string]string `json:"players"` // user id -> user id, used as a set
	Winners       map[string]string `json:"winners"`
}

// NewTournament creates a tournament with signups open.
func NewTournament(channelID, name, category, organizer string) *Tournament {
	return &Tournament{
		ChannelID:     channelID,
		Name:          name,
		Category:      category,
		Organizer:     organizer,
		AcceptSignups: true,
		Players:       map[string]string{},
		Winners:       map[string]string{},
	}
}

// CloseSignups stops accepting new players.
func (t *Tournament) CloseSignups() { t.AcceptSignups = false }

// OpenSignups reverts CloseSignups.
func (t *Tournament) OpenSignups() { t.AcceptSignups = true }

// AddPlayer signs a user up.
func (t *Tournament) AddPlayer(userID string) {
	if t.Players == nil {
		t.Players = map[string]string{}
	}
	t.Players[userID] = userID
}

// RemovePlayer withdraws a user. Removing an unknown user is a no-op.
func (t *Tournament) RemovePlayer(userID string) {
	delete(t.Players, userID)
}

// HasPlayer reports whether the user has signed up.
func (t *Tournament) HasPlayer(userID string) bool {
	_, ok := t.Players[userID]
	return ok
}
