// Package handlers implements the bot's command namespaces: ctf, tournament,
// admin, bot, syscalls, irc, linksave, and wolfram. Each namespace builds one
// commands.Handler from its command table and registers it with the
// dispatcher.
package handlers

import (
	"log/slog"

	"github.com/ctfcrew/brigade/internal/commands"
	"github.com/ctfcrew/brigade/internal/config"
	"github.com/ctfcrew/brigade/internal/irc"
	"github.com/ctfcrew/brigade/internal/linksave"
	"github.com/ctfcrew/brigade/internal/solvetracker"
	"github.com/ctfcrew/brigade/internal/store"
	"github.com/ctfcrew/brigade/internal/syscalls"
	"github.com/ctfcrew/brigade/pkg/models"
)

// Deps carries the shared collaborators the handler namespaces need.
// Integrations left nil (syscall tables, link archive, IRC manager) disable
// the commands that need them.
type Deps struct {
	Conf   *config.Store
	Logger *slog.Logger

	CTFs        *store.Store[*models.CTF]
	Tournaments *store.Store[*models.Tournament]

	Tracker  *solvetracker.Tracker
	Syscalls *syscalls.Info
	IRC      *irc.Manager
	Archive  *linksave.Archive
	Unfurler *linksave.Unfurler
	LinksGit func() (*solvetracker.GitHandler, error)

	Version string
}

func (d *Deps) logger(component string) *slog.Logger {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", component)
}

// RegisterAll builds every namespace and registers it with the dispatcher.
func RegisterAll(registry *commands.Registry, deps *Deps) {
	registry.Register(NewCTFHandler(deps))
	registry.Register(NewTournamentHandler(deps))
	registry.Register(NewAdminHandler(deps))
	registry.Register(NewBotHandler(deps))
	if deps.Syscalls != nil {
		registry.Register(NewSyscallsHandler(deps))
	}
	if deps.IRC != nil {
		registry.Register(NewIRCHandler(deps))
	}
	if deps.Archive != nil {
		registry.Register(NewLinksaveHandler(deps))
	}
	registry.Register(NewWolframHandler(deps))
}
