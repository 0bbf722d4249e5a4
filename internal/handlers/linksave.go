package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ctfcrew/brigade/internal/commands"
	"github.com/ctfcrew/brigade/internal/config"
	"github.com/ctfcrew/brigade/internal/linksave"
	"github.com/ctfcrew/brigade/internal/solvetracker"
)

type linksaveCommands struct {
	conf     *config.Store
	archive  *linksave.Archive
	unfurler *linksave.Unfurler
	git      func() (*solvetracker.GitHandler, error)
	logger   *slog.Logger
	now      func() time.Time
}

// NewLinksaveHandler builds the linksave namespace: archiving links from chat
// messages into the link database and the Jekyll link repository.
func NewLinksaveHandler(deps *Deps) *commands.Handler {
	l := &linksaveCommands{
		conf:     deps.Conf,
		archive:  deps.Archive,
		unfurler: deps.Unfurler,
		git:      deps.LinksGit,
		logger:   deps.logger("linksave"),
		now:      time.Now,
	}

	h := commands.NewHandler("linksave")
	h.Register("link", &commands.Descriptor{
		Command:     commands.CommandFunc(l.saveLink),
		Description: fmt.Sprintf("Save a link in one of the categories: %s", strings.Join(linksave.Categories, ", ")),
		Args:        []string{"category"},
	})
	h.Register("showlinkurl", &commands.Descriptor{
		Command:     commands.CommandFunc(l.showLinkURL),
		Description: "Show the url for linksaver repo",
	})
	return h
}

func (l *linksaveCommands) saveLink(ctx context.Context, inv *commands.Invocation) error {
	category := strings.ToLower(inv.Args[0])
	if !linksave.ValidCategory(category) {
		return commands.Errorf("Save Link failed: Invalid Category.")
	}
	if allowed := l.conf.GetStringSlice(config.KeyLinksaveUsers); len(allowed) > 0 {
		permitted := false
		for _, userID := range allowed {
			if userID == inv.UserID {
				permitted = true
				break
			}
		}
		if !permitted {
			return commands.Errorf("Save Link failed: User not allowed to save links")
		}
	}

	// The link lives in the message the command was attached to.
	message, err := inv.Backend.GetMessage(ctx, inv.ChannelID, inv.Timestamp)
	if err != nil {
		return fmt.Errorf("fetch message: %w", err)
	}
	url := linksave.ExtractURL(message)
	if url == "" {
		return l.reply(ctx, inv, "Save Link failed: Unable to extract URL")
	}

	details, err := l.unfurler.Unfurl(ctx, url)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
			l.logger.Error("unfurl timed out", "url", url)
			return l.reply(ctx, inv, "Save Link failed: Request timed out")
		}
		l.logger.Error("unfurl failed", "url", url, "error", err)
		return l.reply(ctx, inv, "Error saving the link")
	}

	link := &linksave.Link{
		URL:         url,
		Title:       details.Title,
		Description: details.Description,
		Image:       details.Image,
		Category:    category,
		SavedBy:     l.displayName(ctx, inv),
		SavedAt:     l.now(),
	}
	saved, err := l.archive.Save(ctx, link)
	if err != nil {
		l.logger.Error("archiving link failed", "url", url, "error", err)
		return l.reply(ctx, inv, "Error saving the link")
	}

	if err := l.commitEntry(saved); err != nil {
		l.logger.Error("committing link entry failed", "url", url, "error", err)
		return l.reply(ctx, inv, "Error saving the link")
	}
	return l.reply(ctx, inv, "Link saved successfully")
}

// commitEntry writes the Jekyll entry file into the link repository and
// commits it, when a repository is configured.
func (l *linksaveCommands) commitEntry(link *linksave.Link) error {
	if l.git == nil || l.conf.GetString(config.KeyLinksaveRepoPath) == "" {
		return nil
	}
	repo, err := l.git()
	if err != nil {
		return err
	}
	if err := repo.AddFile(linksave.RenderEntry(link), linksave.EntryFilename(link)); err != nil {
		return err
	}
	return repo.Commit(
		fmt.Sprintf("Link saved by %s", link.SavedBy),
		l.conf.GetString(config.KeySolveTrackerAuthor),
		l.conf.GetString(config.KeySolveTrackerEmail),
	)
}

func (l *linksaveCommands) showLinkURL(ctx context.Context, inv *commands.Invocation) error {
	url := l.conf.GetString(config.KeyLinksaveRepoURL)
	if url == "" {
		return commands.Errorf("Link saver: URL for link repository not configured.")
	}
	return inv.Backend.PostMessage(ctx, inv.ChannelID, fmt.Sprintf("Link saver: %s", url))
}

// reply answers in the thread of the triggering message so the outcome sits
// next to the saved link.
func (l *linksaveCommands) reply(ctx context.Context, inv *commands.Invocation, text string) error {
	return inv.Backend.PostThreadMessage(ctx, inv.ChannelID, text, inv.Timestamp)
}

func (l *linksaveCommands) displayName(ctx context.Context, inv *commands.Invocation) string {
	name, err := inv.Backend.MemberName(ctx, inv.UserID)
	if err != nil {
		return inv.UserID
	}
	return name
}
