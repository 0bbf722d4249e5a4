package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ctfcrew/brigade/internal/commands"
	"github.com/ctfcrew/brigade/internal/irc"
)

const (
	defaultIRCNick     = "brigade"
	defaultIRCPort     = 6667
	defaultIRCRealname = "brigade IRC Bridge"
)

type ircCommands struct {
	manager *irc.Manager
}

// NewIRCHandler builds the irc namespace, a thin command layer over the
// bridge manager. Everything except ircstatus is admin-only.
func NewIRCHandler(deps *Deps) *commands.Handler {
	i := &ircCommands{manager: deps.IRC}

	h := commands.NewHandler("irc")
	h.Register("addserver", &commands.Descriptor{
		Command:     commands.CommandFunc(i.addServer),
		Description: "Register an IRC server to the known server list",
		Args:        []string{"server_name", "irc_server"},
		OptArgs:     []string{"irc_nick", "irc_port"},
		AdminOnly:   true,
	})
	h.Register("rmserver", &commands.Descriptor{
		Command:     commands.CommandFunc(i.removeServer),
		Description: "Remove an IRC server from the known server list (Caution: this will remove all connected bridges also)",
		Args:        []string{"server_name"},
		AdminOnly:   true,
	})
	h.Register("startserver", &commands.Descriptor{
		Command:     commands.CommandFunc(i.startServer),
		Description: "Connect the specified server thread to the IRC server",
		Args:        []string{"server_name"},
		AdminOnly:   true,
	})
	h.Register("stopserver", &commands.Descriptor{
		Command:     commands.CommandFunc(i.stopServer),
		Description: "Disconnect the specified server from IRC (and all connected bridges)",
		Args:        []string{"server_name"},
		AdminOnly:   true,
	})
	h.Register("addirc", &commands.Descriptor{
		Command:     commands.CommandFunc(i.addBridge),
		Description: "Add an IRC bridge to the current channel",
		Args:        []string{"server_name", "bridge_name", "irc_channel"},
		AdminOnly:   true,
	})
	h.Register("rmirc", &commands.Descriptor{
		Command:     commands.CommandFunc(i.removeBridge),
		Description: "Remove an IRC bridge from slack",
		Args:        []string{"server_name", "bridge_name"},
		AdminOnly:   true,
	})
	h.Register("startirc", &commands.Descriptor{
		Command:     commands.CommandFunc(i.startBridge),
		Description: "Connect a registered IRC bridge",
		Args:        []string{"server_name", "bridge_name"},
		AdminOnly:   true,
	})
	h.Register("stopirc", &commands.Descriptor{
		Command:     commands.CommandFunc(i.stopBridge),
		Description: "Disconnect a registered IRC bridge",
		Args:        []string{"server_name", "bridge_name"},
		AdminOnly:   true,
	})
	h.Register("ircstatus", &commands.Descriptor{
		Command:     commands.CommandFunc(i.status),
		Description: "Shows a list of currently registered irc bridges",
	})
	return h
}

func (i *ircCommands) addServer(ctx context.Context, inv *commands.Invocation) error {
	nick := defaultIRCNick
	if len(inv.Args) > 2 {
		nick = inv.Args[2]
	}
	port := defaultIRCPort
	if len(inv.Args) > 3 {
		if parsed, err := strconv.Atoi(inv.Args[3]); err == nil {
			port = parsed
		}
	}
	realname := defaultIRCRealname
	if len(inv.Args) > 4 {
		realname = inv.Args[4]
	}

	msg, err := i.manager.AddServer(inv.Args[0], inv.Args[1], port, nick, realname)
	if err != nil {
		return &commands.UserError{Message: err.Error()}
	}
	return inv.Backend.PostMessage(ctx, inv.ChannelID, msg)
}

func (i *ircCommands) removeServer(ctx context.Context, inv *commands.Invocation) error {
	msg, err := i.manager.RemoveServer(inv.Args[0])
	if err != nil {
		return &commands.UserError{Message: err.Error()}
	}
	return inv.Backend.PostMessage(ctx, inv.ChannelID, msg)
}

func (i *ircCommands) startServer(ctx context.Context, inv *commands.Invocation) error {
	if err := i.manager.StartServer(inv.Args[0], inv.ChannelID); err != nil {
		return &commands.UserError{Message: err.Error()}
	}
	return nil
}

func (i *ircCommands) stopServer(ctx context.Context, inv *commands.Invocation) error {
	if err := i.manager.StopServer(inv.Args[0]); err != nil {
		return &commands.UserError{Message: err.Error()}
	}
	return nil
}

func (i *ircCommands) addBridge(ctx context.Context, inv *commands.Invocation) error {
	channel, err := inv.Backend.ChannelInfo(ctx, inv.ChannelID)
	if err != nil {
		return fmt.Errorf("channel info: %w", err)
	}

	msg, err := i.manager.AddBridge(inv.Args[0], inv.Args[1], inv.Args[2], inv.ChannelID, channel.Name)
	if err != nil {
		return &commands.UserError{Message: err.Error()}
	}
	return inv.Backend.PostMessage(ctx, inv.ChannelID, msg)
}

func (i *ircCommands) removeBridge(ctx context.Context, inv *commands.Invocation) error {
	msg, err := i.manager.RemoveBridge(inv.Args[0], inv.Args[1])
	if err != nil {
		return &commands.UserError{Message: err.Error()}
	}
	return inv.Backend.PostMessage(ctx, inv.ChannelID, msg)
}

func (i *ircCommands) startBridge(ctx context.Context, inv *commands.Invocation) error {
	if err := i.manager.StartBridge(inv.Args[0], inv.Args[1]); err != nil {
		return &commands.UserError{Message: err.Error()}
	}
	return nil
}

func (i *ircCommands) stopBridge(ctx context.Context, inv *commands.Invocation) error {
	if err := i.manager.StopBridge(inv.Args[0], inv.Args[1]); err != nil {
		return &commands.UserError{Message: err.Error()}
	}
	return nil
}

func (i *ircCommands) status(ctx context.Context, inv *commands.Invocation) error {
	servers := i.manager.Status()
	if len(servers) == 0 {
		return inv.Backend.PostMessage(ctx, inv.ChannelID, "There are no registered IRC servers at the moment.")
	}

	var b strings.Builder
	for _, server := range servers {
		fmt.Fprintf(&b, "*============= %s (%s) =============*\n", server.Name, server.Host)
		fmt.Fprintf(&b, "*Status* : %s\n\n", server.Status)

		if len(server.Bridges) == 0 {
			b.WriteString("No bridges configured for this server.")
			continue
		}
		for _, bridge := range server.Bridges {
			fmt.Fprintf(&b, "*%s* - IRC: %s <-> Slack: %s (%s)\n",
				bridge.BridgeName, bridge.IRCChannel, bridge.SlackChannelName, bridge.Status)
		}
	}
	return inv.Backend.PostMessage(ctx, inv.ChannelID, b.String())
}
