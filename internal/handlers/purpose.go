package handlers

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/ctfcrew/brigade/internal/chat"
	"github.com/ctfcrew/brigade/pkg/models"
)

// PurposeMarker flags a channel purpose as bot-managed state. The purpose
// field doubles as a secondary store: `reload` can rebuild the databases
// purely from channel metadata if the snapshot files are lost.
const PurposeMarker = "DO_NOT_DELETE_THIS"

// Purpose type discriminators.
const (
	purposeTypeCTF        = "CTF"
	purposeTypeChallenge  = "CHALLENGE"
	purposeTypeTournament = "TOURNAMENT"
)

// purposeProbe is the minimal shape needed to recognize a bot-managed
// purpose and route it to the right decoder.
type purposeProbe struct {
	Marker string `json:"brigade_bot"`
	Type   string `json:"type"`
}

type ctfPurpose struct {
	Marker     string `json:"brigade_bot"`
	Type       string `json:"type"`
	Name       string `json:"name"`
	LongName   string `json:"long_name"`
	CredUser   string `json:"cred_user,omitempty"`
	CredPW     string `json:"cred_pw,omitempty"`
	CredURL    string `json:"cred_url,omitempty"`
	Finished   bool   `json:"finished"`
	FinishedOn int64  `json:"finished_on,omitempty"`
}

type challengePurpose struct {
	Marker    string   `json:"brigade_bot"`
	Type      string   `json:"type"`
	Name      string   `json:"name"`
	CTF       string   `json:"ctf_id"`
	Category  string   `json:"category,omitempty"`
	Solved    bool     `json:"solved"`
	Solver    []string `json:"solver,omitempty"`
	SolveDate int64    `json:"solve_date,omitempty"`
	Players   []string `json:"players,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

type tournamentPurpose struct {
	Marker        string            `json:"brigade_bot"`
	Type          string            `json:"type"`
	Name          string            `json:"name"`
	Category      string            `json:"category,omitempty"`
	Organizer     string            `json:"organizer"`
	AcceptSignups bool              `json:"accept_signups"`
	Finished      bool              `json:"finished"`
	Players       map[string]string `json:"players,omitempty"`
}

// setCTFPurpose mirrors a CTF aggregate into its channel purpose.
func setCTFPurpose(ctx context.Context, backend chat.Backend, ctf *models.CTF) error {
	doc := ctfPurpose{
		Marker:     PurposeMarker,
		Type:       purposeTypeCTF,
		Name:       ctf.Name,
		LongName:   ctf.LongName,
		CredUser:   ctf.CredUser,
		CredPW:     ctf.CredPW,
		CredURL:    ctf.CredURL,
		Finished:   ctf.Finished,
		FinishedOn: ctf.FinishedOn,
	}
	return setPurpose(ctx, backend, ctf.ChannelID, doc)
}

// setChallengePurpose mirrors a challenge into its channel purpose.
func setChallengePurpose(ctx context.Context, backend chat.Backend, challenge *models.Challenge) error {
	players := make([]string, 0, len(challenge.Players))
	for userID := range challenge.Players {
		players = append(players, userID)
	}
	sort.Strings(players)

	doc := challengePurpose{
		Marker:    PurposeMarker,
		Type:      purposeTypeChallenge,
		Name:      challenge.Name,
		CTF:       challenge.CTFChannelID,
		Category:  challenge.Category,
		Solved:    challenge.IsSolved,
		Solver:    challenge.Solver,
		SolveDate: challenge.SolveDate,
		Players:   players,
		Tags:      challenge.Tags,
	}
	return setPurpose(ctx, backend, challenge.ChannelID, doc)
}

// setTournamentPurpose mirrors a tournament into its channel purpose.
func setTournamentPurpose(ctx context.Context, backend chat.Backend, tournament *models.Tournament) error {
	doc := tournamentPurpose{
		Marker:        PurposeMarker,
		Type:          purposeTypeTournament,
		Name:          tournament.Name,
		Category:      tournament.Category,
		Organizer:     tournament.Organizer,
		AcceptSignups: tournament.AcceptSignups,
		Finished:      tournament.Finished,
		Players:       tournament.Players,
	}
	return setPurpose(ctx, backend, tournament.ChannelID, doc)
}

func setPurpose(ctx context.Context, backend chat.Backend, channelID string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return backend.SetPurpose(ctx, channelID, string(data))
}

// parsePurpose decodes a channel purpose. It returns (nil, "") for purposes
// that are not bot-managed or fail to parse; reload treats those as
// skip-with-log.
func parsePurpose(purpose string) (any, string) {
	var probe purposeProbe
	if err := json.Unmarshal([]byte(purpose), &probe); err != nil {
		return nil, ""
	}
	if probe.Marker != PurposeMarker {
		return nil, ""
	}

	switch probe.Type {
	case purposeTypeCTF:
		var doc ctfPurpose
		if err := json.Unmarshal([]byte(purpose), &doc); err != nil {
			return nil, ""
		}
		return &doc, purposeTypeCTF
	case purposeTypeChallenge:
		var doc challengePurpose
		if err := json.Unmarshal([]byte(purpose), &doc); err != nil {
			return nil, ""
		}
		return &doc, purposeTypeChallenge
	case purposeTypeTournament:
		var doc tournamentPurpose
		if err := json.Unmarshal([]byte(purpose), &doc); err != nil {
			return nil, ""
		}
		return &doc, purposeTypeTournament
	default:
		return nil, ""
	}
}
