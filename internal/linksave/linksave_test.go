package linksave

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestUnfurlPrefersMetaTags(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><head>
			<title>Fallback | Title</title>
			<meta property="og:title" content="Heap Exploitation Primer">
			<meta name="description" content="Notes on glibc internals">
			<meta property="og:image" content="https://img.example/heap.png">
		</head><body></body></html>`))
	}))
	defer srv.Close()

	details, err := NewUnfurler(time.Second).Unfurl(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Unfurl: %v", err)
	}
	if details.Title != "Heap Exploitation Primer" {
		t.Errorf("Title = %q", details.Title)
	}
	if details.Description != "Notes on glibc internals" {
		t.Errorf("Description = %q", details.Description)
	}
	if details.Image != "https://img.example/heap.png" {
		t.Errorf("Image = %q", details.Image)
	}
}

func TestUnfurlTitleFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><head><title>Plain | Page</title></head><body></body></html>`))
	}))
	defer srv.Close()

	details, err := NewUnfurler(time.Second).Unfurl(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Unfurl: %v", err)
	}
	// Pipes are replaced so titles fit the repo's table layout.
	if details.Title != "Plain - Page" {
		t.Errorf("Title = %q", details.Title)
	}
	if details.Description != "" || details.Image != "" {
		t.Errorf("unexpected metadata: %+v", details)
	}
}

func TestExtractURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"check this out <https://ctftime.org/event/1234> great writeups", "https://ctftime.org/event/1234"},
		{"bare domain example.org/page here", "example.org/page"},
		{"no links in this message", ""},
	}
	for _, tt := range tests {
		if got := ExtractURL(tt.in); got != tt.want {
			t.Errorf("ExtractURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidCategory(t *testing.T) {
	if !ValidCategory("pwn") || ValidCategory("stego") {
		t.Fatal("category validation mismatch")
	}
}

func TestArchiveSaveAndList(t *testing.T) {
	archive, err := OpenArchive(filepath.Join(t.TempDir(), "links.db"))
	if err != nil {
		t.Fatalf("OpenArchive: %v", err)
	}
	defer archive.Close()

	ctx := context.Background()
	saved, err := archive.Save(ctx, &Link{
		URL:         "https://ctftime.org/event/1234",
		Title:       "Demo CTF",
		Description: "An event",
		Category:    "misc",
		SavedBy:     "alice",
		SavedAt:     time.Unix(1700000000, 0),
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.ID == 0 {
		t.Error("saved link should receive an id")
	}

	if _, err := archive.Save(ctx, &Link{
		URL: "https://example.org", Title: "Later", Category: "misc",
		SavedBy: "bob", SavedAt: time.Unix(1700000100, 0),
	}); err != nil {
		t.Fatalf("Save second: %v", err)
	}

	links, err := archive.ByCategory(ctx, "misc")
	if err != nil {
		t.Fatalf("ByCategory: %v", err)
	}
	if len(links) != 2 || links[0].Title != "Later" || links[1].SavedBy != "alice" {
		t.Errorf("listing mismatch: %+v", links)
	}

	empty, err := archive.ByCategory(ctx, "pwn")
	if err != nil || len(empty) != 0 {
		t.Errorf("empty category: %v, %v", empty, err)
	}
}

func TestRenderEntryAndFilename(t *testing.T) {
	link := &Link{
		URL:         "https://ctftime.org/event/1234",
		Title:       "Demo CTF 2024!",
		Description: "An event",
		Image:       "https://img.example/x.png",
		Category:    "misc",
		SavedBy:     "alice",
		SavedAt:     time.Unix(1700000000, 0),
	}

	entry := RenderEntry(link)
	for _, want := range []string{"title: \"Demo CTF 2024!\"", "link: https://ctftime.org/event/1234", "category: misc", "user: alice"} {
		if !strings.Contains(entry, want) {
			t.Errorf("entry missing %q:\n%s", want, entry)
		}
	}

	if got := EntryFilename(link); got != "_links/misc/1700000000-demo-ctf-2024.md" {
		t.Errorf("EntryFilename = %q", got)
	}
}
