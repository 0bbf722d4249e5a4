package models

import "time"

// MaxTags caps how many tags a single challenge can carry.
const MaxTags = 5

// Player marks a user as working on a challenge. It only exists as a
// set-membership marker inside Challenge.Players.
type Player struct {
	UserID string `json:"user_id"`
}

// Challenge is one task inside a CTF. Each challenge has its own Slack
// channel, which doubles as its identity.
type Challenge struct {
	ChannelID    string             `json:"channel_id"`
	CTFChannelID string             `json:"ctf_channel_id"`
	Name         string             `json:"name"`
	Category     string             `json:"category,omitempty"`
	IsSolved     bool               `json:"is_solved"`
	Solver       []string           `json:"solver,omitempty"`
	SolveDate    int64              `json:"solve_date"` // epoch seconds, 0 = unsolved
	Tags         []string           `json:"tags,omitempty"`
	Players      map[string]*Player `json:"players"`
}

// NewChallenge creates a challenge bound to its own channel and a parent CTF.
func NewChallenge(channelID, ctfChannelID, name, category string) *Challenge {
	return &Challenge{
		ChannelID:    channelID,
		CTFChannelID: ctfChannelID,
		Name:         name,
		Category:     category,
		Players:      map[string]*Player{},
	}
}

// MarkAsSolved records the solvers and the solve time. Solved state, solver
// list and solve date always change together.
func (c *Challenge) MarkAsSolved(solvers []string, now time.Time) {
	c.IsSolved = true
	c.Solver = solvers
	c.SolveDate = now.Unix()
}

// UnmarkAsSolved reverts MarkAsSolved.
func (c *Challenge) UnmarkAsSolved() {
	c.IsSolved = false
	c.Solver = nil
	c.SolveDate = 0
}

// AddPlayer registers a user as working on this challenge. Adding the same
// user twice is a no-op.
func (c *Challenge) AddPlayer(userID string) {
	if c.Players == nil {
		c.Players = map[string]*Player{}
	}
	c.Players[userID] = &Player{UserID: userID}
}

// RemovePlayer removes a user from the working set.
func (c *Challenge) RemovePlayer(userID string) {
	delete(c.Players, userID)
}

// HasPlayer reports whether the user is working on this challenge.
func (c *Challenge) HasPlayer(userID string) bool {
	_, ok := c.Players[userID]
	return ok
}

// AddTag attaches a tag and reports whether anything changed. Once MaxTags
// distinct tags exist, further calls report no change instead of failing.
func (c *Challenge) AddTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return false
		}
	}
	if len(c.Tags) >= MaxTags {
		return false
	}
	c.Tags = append(c.Tags, tag)
	return true
}

// RemoveTag detaches a tag and reports whether it was present.
func (c *Challenge) RemoveTag(tag string) bool {
	for i, t := range c.Tags {
		if t == tag {
			c.Tags = append(c.Tags[:i], c.Tags[i+1:]...)
			return true
		}
	}
	return false
}
