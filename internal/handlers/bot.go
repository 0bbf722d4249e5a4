package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"github.com/ctfcrew/brigade/internal/commands"
	"github.com/ctfcrew/brigade/internal/config"
)

type botCommands struct {
	conf    *config.Store
	logger  *slog.Logger
	version string
}

// NewBotHandler builds the bot namespace: liveness, intro message, version
// info, and the smarter bulk invite.
func NewBotHandler(deps *Deps) *commands.Handler {
	b := &botCommands{conf: deps.Conf, logger: deps.logger("bot"), version: deps.Version}

	h := commands.NewHandler("bot")
	h.Register("ping", &commands.Descriptor{
		Command:     commands.CommandFunc(b.ping),
		Description: "Ping the bot",
	})
	h.Register("intro", &commands.Descriptor{
		Command:     commands.CommandFunc(b.intro),
		Description: "Show an introduction message for new members",
	})
	h.Register("version", &commands.Descriptor{
		Command:     commands.CommandFunc(b.showVersion),
		Description: "Show git information about the running version of the bot",
	})
	h.Register("invite", &commands.Descriptor{
		Command:     commands.CommandFunc(b.invite),
		Description: "Invite a list of members (using @username) to the current channel (smarter than /invite)",
		Args:        []string{"user_list"},
	})
	h.Register("sysinfo", &commands.Descriptor{
		Command:     commands.CommandFunc(b.sysinfo),
		Description: "Show system information",
		AdminOnly:   true,
	})
	return h
}

func (b *botCommands) ping(ctx context.Context, inv *commands.Invocation) error {
	return inv.Backend.PostMessage(ctx, inv.ChannelID, "Pong!")
}

func (b *botCommands) intro(ctx context.Context, inv *commands.Invocation) error {
	message := b.conf.GetString(config.KeyIntroMessage)
	if message == "" {
		message = "Sorry, I forgot what I wanted to say (or the admins forgot to give me an intro message :wink:)"
	}
	return inv.Backend.PostMessage(ctx, inv.ChannelID, message)
}

func (b *botCommands) showVersion(ctx context.Context, inv *commands.Invocation) error {
	if b.version == "" {
		return commands.Errorf("Sorry, couldn't retrieve the git information for the bot...")
	}
	return inv.Backend.PostMessage(ctx, inv.ChannelID, b.version)
}

// invite adds every listed user to the current channel, skipping members that
// are already present.
func (b *botCommands) invite(ctx context.Context, inv *commands.Invocation) error {
	current, err := inv.Backend.ChannelMembers(ctx, inv.ChannelID)
	if err != nil {
		return fmt.Errorf("list channel members: %w", err)
	}
	present := map[string]bool{}
	for _, userID := range current {
		present[userID] = true
	}

	var failed []string
	for _, arg := range inv.Args {
		userID := parseUserRef(arg)
		if userID == "" || present[userID] {
			continue
		}
		if err := inv.Backend.InviteUser(ctx, inv.ChannelID, userID); err != nil {
			b.logger.Error("invite failed", "channel", inv.ChannelID, "user", userID, "error", err)
			failed = append(failed, userID)
		}
	}

	if len(failed) > 0 {
		return commands.Errorf(
			"Sorry, couldn't invite the following members to the channel: %s", strings.Join(failed, " "))
	}
	return nil
}

// sysinfo posts runtime statistics to the requesting user.
func (b *botCommands) sysinfo(ctx context.Context, inv *commands.Invocation) error {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	var out strings.Builder
	out.WriteString("```\n")
	fmt.Fprintf(&out, "go version : %s\n", runtime.Version())
	fmt.Fprintf(&out, "goroutines : %d\n", runtime.NumGoroutine())
	fmt.Fprintf(&out, "heap alloc : %d KiB\n", mem.HeapAlloc/1024)
	fmt.Fprintf(&out, "heap sys   : %d KiB\n", mem.HeapSys/1024)
	fmt.Fprintf(&out, "gc cycles  : %d\n", mem.NumGC)
	out.WriteString("```")
	return inv.Backend.PostMessage(ctx, inv.UserID, out.String())
}
