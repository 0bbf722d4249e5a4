package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ctfcrew/brigade/internal/commands"
	"github.com/ctfcrew/brigade/internal/syscalls"
)

type syscallCommands struct {
	info *syscalls.Info
}

// NewSyscallsHandler builds the syscalls namespace on top of the loaded
// lookup tables.
func NewSyscallsHandler(deps *Deps) *commands.Handler {
	s := &syscallCommands{info: deps.Syscalls}

	h := commands.NewHandler("syscalls")
	h.Register("available", &commands.Descriptor{
		Command:     commands.CommandFunc(s.available),
		Description: "Shows the available syscall architectures",
	})
	h.Register("show", &commands.Descriptor{
		Command:     commands.CommandFunc(s.show),
		Description: "Show information for a specific syscall",
		Args:        []string{"arch", "syscall name/syscall id"},
	})
	return h
}

func (s *syscallCommands) available(ctx context.Context, inv *commands.Invocation) error {
	var b strings.Builder
	b.WriteString("Available architectures:```")
	for _, arch := range s.info.Architectures() {
		b.WriteString(arch)
		b.WriteString("\t")
	}
	b.WriteString("```")
	return inv.Backend.PostMessage(ctx, inv.ChannelID, b.String())
}

func (s *syscallCommands) show(ctx context.Context, inv *commands.Invocation) error {
	arch := strings.ToLower(inv.Args[0])
	table := s.info.Arch(arch)
	if table == nil {
		return commands.Errorf("Specified architecture not available: `%s`", arch)
	}

	// Look up by number when the argument parses as one, by name otherwise.
	var entry *syscalls.Entry
	if id, err := strconv.Atoi(inv.Args[1]); err == nil {
		entry = table.ByID(id)
	} else {
		entry = table.ByName(inv.Args[1])
	}
	if entry == nil {
		return commands.Errorf("Specified syscall not found: `%s (Arch: %s)`", inv.Args[1], arch)
	}
	return inv.Backend.PostMessage(ctx, inv.ChannelID, fmt.Sprintf("```%s```", entry.Info()))
}
