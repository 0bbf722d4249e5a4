package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/ctfcrew/brigade/internal/commands"
	"github.com/ctfcrew/brigade/internal/config"
)

type adminCommands struct {
	conf   *config.Store
	logger *slog.Logger
}

// NewAdminHandler builds the admin namespace: admin-group management,
// maintenance mode, and live configuration access. Every command is
// admin-only, so the whole namespace is invisible to regular users.
func NewAdminHandler(deps *Deps) *commands.Handler {
	a := &adminCommands{conf: deps.Conf, logger: deps.logger("admin")}

	h := commands.NewHandler("admin")
	h.Register("show_admins", &commands.Descriptor{
		Command:     commands.CommandFunc(a.showAdmins),
		Description: "Show a list of current admin users",
		AdminOnly:   true,
	})
	h.Register("add_admin", &commands.Descriptor{
		Command:     commands.CommandFunc(a.addAdmin),
		Description: "Add a user to the admin user group",
		Args:        []string{"user_id"},
		AdminOnly:   true,
	})
	h.Register("remove_admin", &commands.Descriptor{
		Command:     commands.CommandFunc(a.removeAdmin),
		Description: "Remove a user from the admin user group",
		Args:        []string{"user_id"},
		AdminOnly:   true,
	})
	h.Register("maintenance", &commands.Descriptor{
		Command:     commands.CommandFunc(a.maintenance),
		Description: "Show or toggle maintenance mode",
		OptArgs:     []string{"on|off"},
		AdminOnly:   true,
	})
	h.Register("show_config", &commands.Descriptor{
		Command:     commands.CommandFunc(a.showConfig),
		Description: "Show the current configuration",
		AdminOnly:   true,
	})
	h.Register("set_config", &commands.Descriptor{
		Command:     commands.CommandFunc(a.setConfig),
		Description: "Set a configuration option",
		Args:        []string{"key", "value"},
		AdminOnly:   true,
	})
	return h
}

func (a *adminCommands) showAdmins(ctx context.Context, inv *commands.Invocation) error {
	admins := a.conf.GetStringSlice(config.KeyAdminUsers)
	if len(admins) == 0 {
		return inv.Backend.PostMessage(ctx, inv.ChannelID,
			"No admin_users group found. Please check your configuration.")
	}

	var b strings.Builder
	b.WriteString("Administrators\n")
	b.WriteString("===================================\n")
	for _, adminID := range admins {
		name, err := inv.Backend.MemberName(ctx, adminID)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "*%s* (%s)\n", name, adminID)
	}
	b.WriteString("===================================")
	return inv.Backend.PostMessage(ctx, inv.ChannelID, b.String())
}

func (a *adminCommands) addAdmin(ctx context.Context, inv *commands.Invocation) error {
	userID := parseUserRef(inv.Args[0])

	name, err := inv.Backend.MemberName(ctx, userID)
	if err != nil {
		return commands.Errorf(
			"User *%s* not found. You must provide the slack user id, not the username.", inv.Args[0])
	}

	added, err := a.conf.AddAdmin(userID)
	if err != nil {
		return err
	}
	if !added {
		return inv.Backend.PostMessage(ctx, inv.ChannelID,
			fmt.Sprintf("User *%s* is already in the admin group.", name))
	}
	return inv.Backend.PostMessage(ctx, inv.ChannelID,
		fmt.Sprintf("User *%s* added to the admin group.", name))
}

func (a *adminCommands) removeAdmin(ctx context.Context, inv *commands.Invocation) error {
	userID := parseUserRef(inv.Args[0])

	removed, err := a.conf.RemoveAdmin(userID)
	if err != nil {
		return err
	}
	if !removed {
		return inv.Backend.PostMessage(ctx, inv.ChannelID,
			fmt.Sprintf("User *%s* doesn't exist in the admin group", userID))
	}
	return inv.Backend.PostMessage(ctx, inv.ChannelID,
		fmt.Sprintf("User *%s* removed from the admin group.", userID))
}

func (a *adminCommands) maintenance(ctx context.Context, inv *commands.Invocation) error {
	if len(inv.Args) == 0 {
		state := "off"
		if a.conf.GetBool(config.KeyMaintenanceMode) {
			state = "on"
		}
		return inv.Backend.PostMessage(ctx, inv.ChannelID,
			fmt.Sprintf("Maintenance mode is currently *%s*.", state))
	}

	switch strings.ToLower(inv.Args[0]) {
	case "on":
		if err := a.conf.Set(config.KeyMaintenanceMode, true); err != nil {
			return err
		}
		return inv.Backend.PostMessage(ctx, inv.ChannelID, "Maintenance mode enabled.")
	case "off":
		if err := a.conf.Set(config.KeyMaintenanceMode, false); err != nil {
			return err
		}
		return inv.Backend.PostMessage(ctx, inv.ChannelID, "Maintenance mode disabled.")
	default:
		return commands.Errorf("Usage: `!admin maintenance [on|off]`")
	}
}

// secretKey reports whether a config value must be masked in chat output.
func secretKey(key string) bool {
	for _, needle := range []string{"token", "pass", "pw", "secret", "app_id"} {
		if strings.Contains(key, needle) {
			return true
		}
	}
	return false
}

func (a *adminCommands) showConfig(ctx context.Context, inv *commands.Invocation) error {
	keys := a.conf.Keys()
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("Current configuration\n```\n")
	for _, key := range keys {
		value := a.conf.Get(key)
		if secretKey(key) {
			value = "********"
		}
		fmt.Fprintf(&b, "%s = %v\n", key, value)
	}
	b.WriteString("```")
	return inv.Backend.PostMessage(ctx, inv.ChannelID, b.String())
}

func (a *adminCommands) setConfig(ctx context.Context, inv *commands.Invocation) error {
	key := strings.ToLower(inv.Args[0])
	raw := inv.Args[1]

	// Keep booleans as booleans so toggles read back cleanly.
	var value any = raw
	switch strings.ToLower(raw) {
	case "true":
		value = true
	case "false":
		value = false
	}

	if err := a.conf.Set(key, value); err != nil {
		a.logger.Error("setting config option failed", "key", key, "error", err)
		return commands.Errorf("Command failed. Could not persist the configuration.")
	}
	return inv.Backend.PostMessage(ctx, inv.ChannelID,
		fmt.Sprintf("Configuration option *%s* updated.", key))
}
