package solvetracker

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ctfcrew/brigade/internal/config"
	"github.com/ctfcrew/brigade/pkg/models"
)

// ErrNotConfigured is returned when the solve-tracker repository settings
// are absent from the configuration.
var ErrNotConfigured = errors.New("solvetracker not configured")

// Tracker renders and publishes solve posts for finished CTFs. All settings
// come from the live configuration so admins can rewire the repository
// without a restart.
type Tracker struct {
	conf   *config.Store
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Tracker bound to the global configuration.
func New(conf *config.Store, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		conf:   conf,
		logger: logger.With("component", "solvetracker"),
		now:    time.Now,
	}
}

// Configured reports whether a repository path is set.
func (t *Tracker) Configured() bool {
	return t.conf.GetString(config.KeySolveTrackerRepoPath) != ""
}

// PostCTFData renders the post and stats files for a CTF and pushes them to
// the solve-tracker repository. The error carries internal detail for the
// logs; callers show the user a generic failure message.
func (t *Tracker) PostCTFData(ctf *models.CTF, title string) error {
	if !t.Configured() {
		return ErrNotConfigured
	}

	templateDir := t.conf.GetString(config.KeySolveTrackerTemplateDir)
	postTemplate, err := os.ReadFile(filepath.Join(templateDir, "post_ctf_template"))
	if err != nil {
		return fmt.Errorf("read post template: %w", err)
	}
	challengeTemplate, err := os.ReadFile(filepath.Join(templateDir, "post_challenge_template"))
	if err != nil {
		return fmt.Errorf("read challenge template: %w", err)
	}

	now := t.now()
	front, err := RenderFrontMatter(ctf, title, now)
	if err != nil {
		return err
	}
	post := front + ResolvePost(ctf, title, string(postTemplate), string(challengeTemplate), now)
	postFilename := filepath.Join("_posts", fmt.Sprintf("%d-%d-%d-%s.md", now.Year(), now.Month(), now.Day(), ctf.Name))

	stats, err := ResolveStats(ctf)
	if err != nil {
		return err
	}
	statsFilename := filepath.Join("_stats", ctf.Name+".json")

	git, err := OpenRepo(t.conf.GetString(config.KeySolveTrackerRepoPath), t.logger)
	if err != nil {
		return err
	}
	if err := git.AddFile(post, postFilename); err != nil {
		return err
	}
	if err := git.AddFile(stats, statsFilename); err != nil {
		return err
	}
	if err := git.Commit(
		fmt.Sprintf("Solve post from %s", ctf.Name),
		t.conf.GetString(config.KeySolveTrackerAuthor),
		t.conf.GetString(config.KeySolveTrackerEmail),
	); err != nil {
		return err
	}
	if err := git.Push(
		t.conf.GetString(config.KeySolveTrackerUser),
		t.conf.GetString(config.KeySolveTrackerPass),
		t.conf.GetString(config.KeySolveTrackerBranch),
	); err != nil {
		return err
	}

	t.logger.Info("solve post published", "ctf", ctf.Name, "post", postFilename)
	return nil
}
