// Package models contains the domain entities tracked by the bot: CTFs,
// challenges, tournaments and IRC bridge state. Entities are plain data with
// small mutation methods and are serialized as-is into the flat-file stores,
// so every field that must survive a restart carries a json tag.
package models

import (
	"regexp"
	"time"
)

// MaxCTFNameLength is the longest short name a CTF may have. Slack channel
// names share this limit, and the CTF name becomes the channel name.
const MaxCTFNameLength = 40

var ctfNamePattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// ValidCTFName reports whether name is usable as a CTF short name.
func ValidCTFName(name string) bool {
	return name != "" && len(name) <= MaxCTFNameLength && ctfNamePattern.MatchString(name)
}

// CTF represents an ongoing (or finished) CTF event. Identity is the Slack
// channel id of the CTF channel.
type CTF struct {
	ChannelID  string       `json:"channel_id"`
	Name       string       `json:"name"`
	LongName   string       `json:"long_name"`
	CredUser   string       `json:"cred_user"`
	CredPW     string       `json:"cred_pw"`
	CredURL    string       `json:"cred_url"`
	Finished   bool         `json:"finished"`
	FinishedOn int64        `json:"finished_on,omitempty"` // epoch seconds, 0 = still running
	Challenges []*Challenge `json:"challenges"`
}

// NewCTF creates a CTF bound to the given channel.
func NewCTF(channelID, name, longName string) *CTF {
	return &CTF{
		ChannelID: channelID,
		Name:      name,
		LongName:  longName,
	}
}

// AddChallenge appends a challenge to this CTF.
func (c *CTF) AddChallenge(chal *Challenge) {
	c.Challenges = append(c.Challenges, chal)
}

// RemoveChallenge deletes the challenge with the given channel id, if present.
func (c *CTF) RemoveChallenge(channelID string) {
	for i, chal := range c.Challenges {
		if chal.ChannelID == channelID {
			c.Challenges = append(c.Challenges[:i], c.Challenges[i+1:]...)
			return
		}
	}
}

// FindChallengeByName returns the challenge with the given name, or nil.
func (c *CTF) FindChallengeByName(name string) *Challenge {
	for _, chal := range c.Challenges {
		if chal.Name == name {
			return chal
		}
	}
	return nil
}

// FindChallengeByChannel returns the challenge living in the given channel,
// or nil.
func (c *CTF) FindChallengeByChannel(channelID string) *Challenge {
	for _, chal := range c.Challenges {
		if chal.ChannelID == channelID {
			return chal
		}
	}
	return nil
}

// MarkFinished flags the CTF as over and records when.
func (c *CTF) MarkFinished(now time.Time) {
	c.Finished = true
	c.FinishedOn = now.Unix()
}
