package solvetracker

import (
	"os"
	"path/filepath"
	"testing"

	git "github.com/go-git/go-git/v5"
)

func TestAddFileAndCommit(t *testing.T) {
	dir := t.TempDir()
	if _, err := git.PlainInit(dir, false); err != nil {
		t.Fatalf("init repo: %v", err)
	}

	handler, err := OpenRepo(dir, nil)
	if err != nil {
		t.Fatalf("OpenRepo: %v", err)
	}

	if err := handler.AddFile("# solves\n", filepath.Join("_posts", "2024-1-1-democtf.md")); err != nil {
		t.Fatalf("AddFile: %v", err)
	}
	if err := handler.Commit("Solve post from democtf", "brigade", "brigade@example.org"); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	written, err := os.ReadFile(filepath.Join(dir, "_posts", "2024-1-1-democtf.md"))
	if err != nil || string(written) != "# solves\n" {
		t.Fatalf("file content = %q, err = %v", written, err)
	}

	repo, err := git.PlainOpen(dir)
	if err != nil {
		t.Fatal(err)
	}
	head, err := repo.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		t.Fatalf("CommitObject: %v", err)
	}
	if commit.Message != "Solve post from democtf" {
		t.Errorf("commit message = %q", commit.Message)
	}
	if commit.Author.Name != "brigade" {
		t.Errorf("author = %q", commit.Author.Name)
	}
}

func TestOpenRepoMissing(t *testing.T) {
	if _, err := OpenRepo(t.TempDir(), nil); err == nil {
		t.Fatal("expected error for a directory that is not a repository")
	}
}
