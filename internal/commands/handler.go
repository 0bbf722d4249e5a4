package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// MaintenanceMessage is posted to non-admins while maintenance mode is on.
const MaintenanceMessage = "The bot is currently in maintenance mode. Please try again later."

// Handler groups related commands under one namespace. It owns a command
// table, an alias table mapping shorthand names to canonical command names,
// and a reaction table for emoji-triggered commands.
type Handler struct {
	name      string
	commands  map[string]*Descriptor
	aliases   map[string]string
	reactions map[string]*Descriptor
	order     []string
}

// NewHandler creates an empty handler for the given namespace.
func NewHandler(name string) *Handler {
	return &Handler{
		name:      strings.ToLower(name),
		commands:  map[string]*Descriptor{},
		aliases:   map[string]string{},
		reactions: map[string]*Descriptor{},
	}
}

// Name returns the handler's namespace.
func (h *Handler) Name() string { return h.name }

// Register adds a command to the table. Registration happens at startup
// before the dispatcher runs; the table is read-only afterwards.
func (h *Handler) Register(command string, d *Descriptor) {
	command = strings.ToLower(command)
	if _, exists := h.commands[command]; !exists {
		h.order = append(h.order, command)
	}
	h.commands[command] = d
}

// Alias maps a shorthand name to a registered command.
func (h *Handler) Alias(alias, command string) {
	h.aliases[strings.ToLower(alias)] = strings.ToLower(command)
}

// RegisterReaction maps an emoji name to a command. Reactions carry no
// arguments and bypass arity checking.
func (h *Handler) RegisterReaction(reaction string, d *Descriptor) {
	h.reactions[reaction] = d
}

// resolve returns the descriptor for a command name, following one level of
// aliasing.
func (h *Handler) resolve(command string) (string, *Descriptor) {
	if canonical, ok := h.aliases[command]; ok {
		command = canonical
	}
	return command, h.commands[command]
}

// CanHandle reports whether this handler owns the command and the caller may
// see it. Admin-only commands are invisible to non-admins here, so an
// unauthorized attempt looks exactly like an unknown command.
func (h *Handler) CanHandle(command string, isAdmin bool) bool {
	_, d := h.resolve(strings.ToLower(command))
	if d == nil {
		return false
	}
	return !d.AdminOnly || isAdmin
}

// CanHandleReaction reports whether the handler has a command bound to the
// emoji.
func (h *Handler) CanHandleReaction(reaction string) bool {
	_, ok := h.reactions[reaction]
	return ok
}

// Process runs one command. The maintenance gate comes first and applies to
// every command, admin callers excepted. Insufficient arguments yield the
// command's usage line as a user error without invoking the command body.
func (h *Handler) Process(ctx context.Context, inv *Invocation, command string, maintenance bool) error {
	if maintenance && !inv.IsAdmin {
		return &UserError{Message: MaintenanceMessage}
	}

	command, d := h.resolve(strings.ToLower(command))
	if d == nil {
		return Errorf("Unknown command : `%s`", command)
	}
	if len(inv.Args) < len(d.Args) {
		return Errorf("Usage: %s", d.usage(h.name, command))
	}
	return d.Command.Execute(ctx, inv)
}

// ProcessReaction runs the command bound to an emoji, if any. The
// maintenance gate applies here too.
func (h *Handler) ProcessReaction(ctx context.Context, inv *Invocation, reaction string, maintenance bool) error {
	if maintenance && !inv.IsAdmin {
		return &UserError{Message: MaintenanceMessage}
	}
	d, ok := h.reactions[reaction]
	if !ok {
		return nil
	}
	return d.Command.Execute(ctx, inv)
}

// Usage renders the handler's help text. Admin-only commands are omitted for
// non-admin callers. Aliases are listed after their canonical command.
func (h *Handler) Usage(isAdmin bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Usage of handler `%s`:\n", h.name)

	aliasesFor := map[string][]string{}
	for alias, canonical := range h.aliases {
		aliasesFor[canonical] = append(aliasesFor[canonical], alias)
	}

	for _, command := range h.order {
		d := h.commands[command]
		if d.AdminOnly && !isAdmin {
			continue
		}
		b.WriteString(d.usage(h.name, command))
		if d.Description != "" {
			b.WriteString(" - ")
			b.WriteString(d.Description)
		}
		if aliases := aliasesFor[command]; len(aliases) > 0 {
			sort.Strings(aliases)
			fmt.Fprintf(&b, " (alias: %s)", strings.Join(aliases, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}
