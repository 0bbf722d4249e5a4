package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/ctfcrew/brigade/internal/commands"
	"github.com/ctfcrew/brigade/internal/store"
	"github.com/ctfcrew/brigade/pkg/models"
)

var errNotTournamentChannel = &commands.UserError{Message: "Command failed. You are not in a tournament channel."}

type tournamentCommands struct {
	tournaments *store.Store[*models.Tournament]
	logger      *slog.Logger
}

// NewTournamentHandler builds the tournament namespace: informal "pwn-off"
// style competitions with signup tracking and a join-button reaction.
func NewTournamentHandler(deps *Deps) *commands.Handler {
	t := &tournamentCommands{
		tournaments: deps.Tournaments,
		logger:      deps.logger("tournament"),
	}

	h := commands.NewHandler("tournament")
	h.Register("add", &commands.Descriptor{
		Command:     commands.CommandFunc(t.add),
		Description: "Adds a new tournament",
		Args:        []string{"category"},
	})
	h.Register("status", &commands.Descriptor{
		Command:     commands.CommandFunc(t.status),
		Description: "Show the status for all ongoing tournaments",
		OptArgs:     []string{"-v"},
	})
	h.Register("join", &commands.Descriptor{
		Command:     commands.CommandFunc(t.join),
		Description: "Participate in a tournament",
	})
	h.Register("unjoin", &commands.Descriptor{
		Command:     commands.CommandFunc(t.unjoin),
		Description: "Pull out from a tournament",
	})
	h.Register("close-signups", &commands.Descriptor{
		Command:     commands.CommandFunc(t.closeSignups),
		Description: "Close signups for this tournament",
	})
	h.Register("open-signups", &commands.Descriptor{
		Command:     commands.CommandFunc(t.openSignups),
		Description: "Open signups for this tournament",
	})
	h.Register("end", &commands.Descriptor{
		Command:     commands.CommandFunc(t.end),
		Description: "Mark a tournament as ended, but not archive it directly",
	})
	h.Register("reload", &commands.Descriptor{
		Command:     commands.CommandFunc(t.reload),
		Description: "Reload tournament information from channel purposes",
		AdminOnly:   true,
	})

	h.RegisterReaction("arrows_clockwise", &commands.Descriptor{
		Command: commands.CommandFunc(t.refreshStatus(true)),
	})
	h.RegisterReaction("arrows_counterclockwise", &commands.Descriptor{
		Command: commands.CommandFunc(t.refreshStatus(false)),
	})
	h.RegisterReaction("crossed_swords", &commands.Descriptor{
		Command: commands.CommandFunc(t.joinButton),
	})

	return h
}

func (t *tournamentCommands) add(ctx context.Context, inv *commands.Invocation) error {
	category := strings.ToLower(inv.Args[0])

	snapshot, err := t.tournaments.Load()
	if err != nil {
		return err
	}
	count := 0
	for _, tournament := range snapshot {
		if tournament.Category == category {
			count++
		}
	}
	name := fmt.Sprintf("%s-off%d", category, count+1)

	channel, err := inv.Backend.CreateChannel(ctx, name)
	if err != nil {
		t.logger.Error("creating tournament channel failed", "name", name, "error", err)
		return commands.Errorf("\"%s\" channel creation failed.", name)
	}

	if err := inv.Backend.InviteUser(ctx, channel.ID, inv.UserID); err != nil {
		t.logger.Debug("inviting organizer failed", "channel", channel.ID, "error", err)
	}

	tournament := models.NewTournament(channel.ID, name, category, inv.UserID)
	if err := t.tournaments.Transaction(func(entries map[string]*models.Tournament) error {
		entries[tournament.ChannelID] = tournament
		return nil
	}); err != nil {
		return err
	}

	if err := setTournamentPurpose(ctx, inv.Backend, tournament); err != nil {
		t.logger.Error("setting tournament purpose failed", "tournament", name, "error", err)
	}

	// The crossed_swords reaction on this message doubles as a join button;
	// the <#id|name> link is what the button handler parses the name from.
	message := fmt.Sprintf("Created tournament <#%s|%s>", channel.ID, name)
	return inv.Backend.PostMessageWithReaction(ctx, inv.ChannelID, message, "crossed_swords")
}

func tournamentTitle(tournament *models.Tournament) string {
	title := fmt.Sprintf("#%s [%d players]", tournament.Name, len(tournament.Players))
	if tournament.Finished {
		title += " (tournament has ended)"
	} else if !tournament.AcceptSignups {
		title += " (signups have closed)"
	}
	return title
}

// renderStatus builds the tournament board. Inside a tournament channel only
// that tournament is shown and the verbose form is forced.
func (t *tournamentCommands) renderStatus(ctx context.Context, inv *commands.Invocation, verbose bool) (string, error) {
	snapshot, err := t.tournaments.Load()
	if err != nil {
		return "", err
	}

	var list []*models.Tournament
	if current, ok := snapshot[inv.ChannelID]; ok {
		list = []*models.Tournament{current}
		verbose = true
	} else {
		for _, tournament := range snapshot {
			list = append(list, tournament)
		}
		sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	}

	if !verbose {
		if len(list) == 0 {
			return "*There are currently no running tournaments*", nil
		}
		var b strings.Builder
		for _, tournament := range list {
			fmt.Fprintf(&b, "*%s*\n", tournamentTitle(tournament))
		}
		return b.String(), nil
	}

	members, err := inv.Backend.Members(ctx)
	if err != nil {
		return "", commands.Errorf("Status failed. Could not refresh member list...")
	}

	var b strings.Builder
	for _, tournament := range list {
		fmt.Fprintf(&b, "*------------- %s -------------*\n", tournamentTitle(tournament))
		if len(tournament.Players) == 0 {
			b.WriteString("*There are currently no participants in this tournament.*\n")
			continue
		}
		b.WriteString("*Players for this tournament are*\n```\n")
		players := make([]string, 0, len(tournament.Players))
		for playerID := range tournament.Players {
			if name, ok := members[playerID]; ok {
				players = append(players, name)
			}
		}
		sort.Strings(players)
		for _, name := range players {
			b.WriteString(name)
			b.WriteString("\n")
		}
		b.WriteString("```\n")
	}
	return b.String(), nil
}

func (t *tournamentCommands) status(ctx context.Context, inv *commands.Invocation) error {
	verbose := len(inv.Args) > 0 && inv.Args[0] == "-v"
	board, err := t.renderStatus(ctx, inv, verbose)
	if err != nil {
		return err
	}
	reaction := "arrows_counterclockwise"
	if verbose || strings.Contains(board, "-------") {
		reaction = "arrows_clockwise"
	}
	return inv.Backend.PostMessageWithReaction(ctx, inv.ChannelID, board, reaction)
}

// refreshStatus returns the reaction command that re-renders a posted board
// in place. The board is recognized by its content since messages carry no
// metadata tag.
func (t *tournamentCommands) refreshStatus(verbose bool) commands.CommandFunc {
	marker := "players"
	if verbose {
		marker = "-------"
	}
	return func(ctx context.Context, inv *commands.Invocation) error {
		text, err := inv.Backend.GetMessage(ctx, inv.ChannelID, inv.Timestamp)
		if err != nil || !strings.Contains(text, marker) || strings.HasPrefix(text, statusMarker) {
			return nil
		}
		board, err := t.renderStatus(ctx, inv, verbose)
		if err != nil {
			return err
		}
		return inv.Backend.UpdateMessage(ctx, inv.ChannelID, inv.Timestamp, board)
	}
}

func (t *tournamentCommands) join(ctx context.Context, inv *commands.Invocation) error {
	tournament, err := t.tournaments.Get(inv.ChannelID)
	if err != nil {
		return errNotTournamentChannel
	}
	if tournament.Finished {
		return commands.Errorf("Command failed. Tournament has ended.")
	}
	if tournament.HasPlayer(inv.UserID) {
		return commands.Errorf("Command failed. You have already signed up for this tournament.")
	}
	if !tournament.AcceptSignups {
		return commands.Errorf("Command failed. Signups have closed for this tournament.")
	}

	updated, err := t.tournaments.Update(inv.ChannelID, func(entry *models.Tournament) {
		entry.AddPlayer(inv.UserID)
	})
	if err != nil {
		return err
	}
	if err := setTournamentPurpose(ctx, inv.Backend, updated); err != nil {
		t.logger.Error("setting tournament purpose failed", "tournament", updated.Name, "error", err)
	}
	return inv.Backend.PostMessage(ctx, inv.UserID, fmt.Sprintf("You have signed up for #%s.", updated.Name))
}

func (t *tournamentCommands) unjoin(ctx context.Context, inv *commands.Invocation) error {
	tournament, err := t.tournaments.Get(inv.ChannelID)
	if err != nil {
		return errNotTournamentChannel
	}
	if tournament.Finished {
		return commands.Errorf("Command failed. Tournament has ended.")
	}
	if !tournament.HasPlayer(inv.UserID) {
		return commands.Errorf("Command failed. You have not signed up for this tournament.")
	}
	if !tournament.AcceptSignups {
		return commands.Errorf("Command failed. Signups have closed for this tournament.")
	}

	updated, err := t.tournaments.Update(inv.ChannelID, func(entry *models.Tournament) {
		entry.RemovePlayer(inv.UserID)
	})
	if err != nil {
		return err
	}
	if err := setTournamentPurpose(ctx, inv.Backend, updated); err != nil {
		t.logger.Error("setting tournament purpose failed", "tournament", updated.Name, "error", err)
	}
	return inv.Backend.PostMessage(ctx, inv.UserID, fmt.Sprintf("You have pulled out from #%s.", updated.Name))
}

// joinButton signs a user up when they click the crossed_swords reaction on
// the "Created tournament" message. The tournament name is parsed out of the
// channel link in the message text.
func (t *tournamentCommands) joinButton(ctx context.Context, inv *commands.Invocation) error {
	text, err := inv.Backend.GetMessage(ctx, inv.ChannelID, inv.Timestamp)
	if err != nil || !strings.Contains(text, "Created tournament") {
		return nil
	}
	pipe := strings.Index(text, "|")
	end := strings.LastIndex(text, ">")
	if pipe < 0 || end <= pipe {
		return nil
	}
	name := text[pipe+1 : end]

	snapshot, err := t.tournaments.Load()
	if err != nil {
		return err
	}
	var tournament *models.Tournament
	for _, entry := range snapshot {
		if entry.Name == name {
			tournament = entry
			break
		}
	}
	if tournament == nil {
		return nil
	}

	if err := inv.Backend.InviteUser(ctx, tournament.ChannelID, inv.UserID); err != nil {
		t.logger.Debug("inviting player failed", "tournament", name, "user", inv.UserID, "error", err)
	}

	switch {
	case !tournament.AcceptSignups:
		return inv.Backend.PostMessage(ctx, inv.UserID, fmt.Sprintf("Signups have closed for #%s.", name))
	case tournament.Finished:
		return inv.Backend.PostMessage(ctx, inv.UserID, fmt.Sprintf("%s has ended.", name))
	}

	updated, err := t.tournaments.Update(tournament.ChannelID, func(entry *models.Tournament) {
		entry.AddPlayer(inv.UserID)
	})
	if err != nil {
		return err
	}
	if err := setTournamentPurpose(ctx, inv.Backend, updated); err != nil {
		t.logger.Error("setting tournament purpose failed", "tournament", name, "error", err)
	}
	return inv.Backend.PostMessage(ctx, inv.UserID, fmt.Sprintf("You have signed up for #%s.", name))
}

func (t *tournamentCommands) closeSignups(ctx context.Context, inv *commands.Invocation) error {
	tournament, err := t.tournaments.Get(inv.ChannelID)
	if err != nil {
		return commands.Errorf("Close signups failed. You are not in a tournament channel.")
	}
	if inv.UserID != tournament.Organizer {
		return commands.Errorf("Command failed. You are not the organizer of this tournament.")
	}
	if tournament.Finished {
		return commands.Errorf("Command failed. Tournament has ended.")
	}
	if !tournament.AcceptSignups {
		return commands.Errorf("Command failed. Signups are already closed.")
	}

	updated, err := t.tournaments.Update(inv.ChannelID, func(entry *models.Tournament) {
		entry.CloseSignups()
	})
	if err != nil {
		return err
	}
	if err := setTournamentPurpose(ctx, inv.Backend, updated); err != nil {
		t.logger.Error("setting tournament purpose failed", "tournament", updated.Name, "error", err)
	}
	return inv.Backend.PostMessage(ctx, inv.ChannelID, "Signups are closed for this tournament")
}

func (t *tournamentCommands) openSignups(ctx context.Context, inv *commands.Invocation) error {
	tournament, err := t.tournaments.Get(inv.ChannelID)
	if err != nil {
		return commands.Errorf("Open signups failed. You are not in a tournament channel.")
	}
	if inv.UserID != tournament.Organizer {
		return commands.Errorf("Command failed. You are not the organizer of this tournament.")
	}
	if tournament.Finished {
		return commands.Errorf("Command failed. Tournament has ended.")
	}
	if tournament.AcceptSignups {
		return commands.Errorf("Command failed. Signups are already opened.")
	}

	updated, err := t.tournaments.Update(inv.ChannelID, func(entry *models.Tournament) {
		entry.OpenSignups()
	})
	if err != nil {
		return err
	}
	if err := setTournamentPurpose(ctx, inv.Backend, updated); err != nil {
		t.logger.Error("setting tournament purpose failed", "tournament", updated.Name, "error", err)
	}
	return inv.Backend.PostMessage(ctx, inv.ChannelID, "Signups are opened for this tournament")
}

func (t *tournamentCommands) end(ctx context.Context, inv *commands.Invocation) error {
	tournament, err := t.tournaments.Get(inv.ChannelID)
	if err != nil {
		return commands.Errorf("End tournament failed: You are not in a tournament channel.")
	}
	if inv.UserID != tournament.Organizer {
		return commands.Errorf("Command failed. You are not the organizer of this tournament.")
	}

	updated, err := t.tournaments.Update(inv.ChannelID, func(entry *models.Tournament) {
		entry.Finished = true
	})
	if err != nil {
		return err
	}
	if err := setTournamentPurpose(ctx, inv.Backend, updated); err != nil {
		t.logger.Error("setting tournament purpose failed", "tournament", updated.Name, "error", err)
	}
	return inv.Backend.PostMessage(ctx, inv.ChannelID, fmt.Sprintf("Tournament *%s* has ended...", updated.Name))
}

// reload rebuilds the tournament database from channel purposes, skipping
// channels whose purpose is missing or fails to parse.
func (t *tournamentCommands) reload(ctx context.Context, inv *commands.Invocation) error {
	if err := inv.Backend.PostMessage(ctx, inv.ChannelID, "Updating tournaments..."); err != nil {
		t.logger.Debug("posting reload notice failed", "error", err)
	}

	channels, err := inv.Backend.ListChannels(ctx)
	if err != nil {
		return fmt.Errorf("list channels: %w", err)
	}

	rebuilt := map[string]*models.Tournament{}
	for _, channel := range channels {
		if channel.IsArchived || channel.Purpose == "" {
			continue
		}
		doc, kind := parsePurpose(channel.Purpose)
		if kind != purposeTypeTournament {
			if kind == "" && looksLikeBotPurpose(channel.Purpose) {
				t.logger.Warn("skipping malformed channel purpose", "channel", channel.Name)
			}
			continue
		}
		p := doc.(*tournamentPurpose)
		tournament := models.NewTournament(channel.ID, p.Name, p.Category, p.Organizer)
		tournament.AcceptSignups = p.AcceptSignups
		tournament.Finished = p.Finished
		if p.Players != nil {
			tournament.Players = p.Players
		}
		rebuilt[channel.ID] = tournament
	}

	if err := t.tournaments.Save(rebuilt); err != nil {
		return err
	}
	return inv.Backend.PostMessage(ctx, inv.ChannelID, "Update finished...")
}
