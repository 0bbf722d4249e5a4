package solvetracker

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// GitHandler stages, commits, and pushes files in a local working copy of
// the solve-tracker repository.
type GitHandler struct {
	path   string
	repo   *git.Repository
	logger *slog.Logger
}

// OpenRepo opens the working copy at path.
func OpenRepo(path string, logger *slog.Logger) (*GitHandler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("open repo %s: %w", path, err)
	}
	return &GitHandler{
		path:   path,
		repo:   repo,
		logger: logger.With("component", "githandler"),
	}, nil
}

// AddFile writes data to filename (relative to the repo root) and stages it.
func (g *GitHandler) AddFile(data, filename string) error {
	full := filepath.Join(g.path, filename)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", filename, err)
	}
	if err := os.WriteFile(full, []byte(data), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filename, err)
	}

	wt, err := g.repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}
	if _, err := wt.Add(filename); err != nil {
		return fmt.Errorf("stage %s: %w", filename, err)
	}
	return nil
}

// Commit records the staged changeset.
func (g *GitHandler) Commit(message, authorName, authorEmail string) error {
	wt, err := g.repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}
	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  authorName,
			Email: authorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	g.logger.Info("committed solve post", "hash", hash.String(), "message", message)
	return nil
}

// Push uploads the branch to the remote with basic auth.
func (g *GitHandler) Push(user, password, branch string) error {
	refSpec := gitconfig.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch))
	err := g.repo.Push(&git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []gitconfig.RefSpec{refSpec},
		Auth: &githttp.BasicAuth{
			Username: user,
			Password: password,
		},
	})
	if err == git.NoErrAlreadyUpToDate {
		return nil
	}
	if err != nil {
		return fmt.Errorf("push %s: %w", branch, err)
	}
	return nil
}
