package server

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ctfcrew/brigade/internal/chat"
	"github.com/ctfcrew/brigade/internal/chat/chattest"
	"github.com/ctfcrew/brigade/internal/commands"
	"github.com/ctfcrew/brigade/internal/config"
	"github.com/ctfcrew/brigade/internal/handlers"
	"github.com/ctfcrew/brigade/internal/store"
	"github.com/ctfcrew/brigade/pkg/models"
	"golang.org/x/net/html"
)

type fakeSource struct {
	ch chan chat.Event
}

func (f *fakeSource) Events() <-chan chat.Event { return f.ch }

func newTestServer(t *testing.T, confData string) (*Server, *chattest.Fake, *fakeSource) {
	t.Helper()
	dir := t.TempDir()

	confPath := filepath.Join(dir, "config.json")
	if err := os.WriteFile(confPath, []byte(confData), 0o600); err != nil {
		t.Fatal(err)
	}
	conf, err := config.Load(confPath, nil)
	if err != nil {
		t.Fatal(err)
	}

	backend := chattest.NewFake()
	backend.AddChannel(&chat.Channel{ID: "C_HOME", Name: "general"})

	registry := commands.NewRegistry(conf, nil)
	handlers.RegisterAll(registry, &handlers.Deps{
		Conf:        conf,
		CTFs:        store.New[*models.CTF](filepath.Join(dir, "ctfs.json")),
		Tournaments: store.New[*models.Tournament](filepath.Join(dir, "tournaments.json")),
	})

	source := &fakeSource{ch: make(chan chat.Event, 10)}
	srv := New(backend, source, registry, conf, nil, nil, nil)
	return srv, backend, source
}

// runServer drives the event loop until the source channel is drained.
func runServer(t *testing.T, srv *Server, source *fakeSource) {
	t.Helper()
	close(source.ch)
	if err := srv.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v", err)
	}
}

func TestDispatchCommand(t *testing.T) {
	srv, backend, source := newTestServer(t, `{"admin_users": []}`)

	source.ch <- chat.Event{
		Kind:      chat.EventCommand,
		Text:      "bot ping",
		ChannelID: "C_HOME",
		UserID:    "U1",
		Timestamp: "1700000000.000100",
	}
	runServer(t, srv, source)

	if !backend.SaidIn("C_HOME", "Pong!") {
		t.Fatalf("expected pong, got %+v", backend.PostedMessages())
	}
}

func TestPurposeChangeWarning(t *testing.T) {
	srv, backend, source := newTestServer(t, `{"admin_users": []}`)

	source.ch <- chat.Event{
		Kind:      chat.EventPurposeChanged,
		Text:      "my cool new purpose",
		ChannelID: "C_HOME",
		UserID:    "U1",
	}
	runServer(t, srv, source)

	if !backend.SaidIn("C_HOME", "do not change the channel purpose") {
		t.Fatalf("expected warning, got %+v", backend.PostedMessages())
	}
}

func TestDeletedMessageAudit(t *testing.T) {
	srv, backend, source := newTestServer(t,
		`{"admin_users": [], "delete_watch_keywords": ["flag{"]}`)

	source.ch <- chat.Event{
		Kind:      chat.EventMessageDeleted,
		Text:      "the flag is flag{test}",
		ChannelID: "C_HOME",
		UserID:    "U1",
	}
	source.ch <- chat.Event{
		Kind:      chat.EventMessageDeleted,
		Text:      "nothing interesting here",
		ChannelID: "C_HOME",
		UserID:    "U1",
	}
	runServer(t, srv, source)

	posted := backend.PostedMessages()
	if len(posted) != 1 {
		t.Fatalf("expected one audit message, got %d: %+v", len(posted), posted)
	}
	if !strings.Contains(posted[0].Text, "flag{test}") || !strings.Contains(posted[0].Text, "<@U1>") {
		t.Fatalf("audit message = %q", posted[0].Text)
	}
}

func TestAutoInviteOnChannelCreated(t *testing.T) {
	srv, backend, source := newTestServer(t,
		`{"admin_users": [], "auto_invite": ["U_VIP", "U2"]}`)
	backend.AddChannel(&chat.Channel{ID: "C_FRESH", Name: "fresh"})

	source.ch <- chat.Event{
		Kind:      chat.EventChannelCreated,
		ChannelID: "C_FRESH",
		UserID:    "U2",
	}
	runServer(t, srv, source)

	members, err := backend.ChannelMembers(context.Background(), "C_FRESH")
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 1 || members[0] != "U_VIP" {
		t.Fatalf("members = %v, want only U_VIP (creator skipped)", members)
	}
}

func TestContainsKeyword(t *testing.T) {
	tests := []struct {
		text     string
		keywords []string
		want     bool
	}{
		{"the FLAG{x} leaked", []string{"flag{"}, true},
		{"harmless", []string{"flag{"}, false},
		{"anything", nil, false},
		{"password dump", []string{"", "password"}, true},
	}
	for _, tt := range tests {
		if got := containsKeyword(tt.text, tt.keywords); got != tt.want {
			t.Errorf("containsKeyword(%q, %v) = %v, want %v", tt.text, tt.keywords, got, tt.want)
		}
	}
}

const scoreboardPage = `<html><body>
<table class="table table-striped">
<tr><th>Place</th><th>Team</th><th>Points</th></tr>
<tr><td>1</td><td><a href="/team/1">toporders</a></td><td>1337.42</td></tr>
<tr><td>2</td><td><a href="/team/2">the cr0wn</a></td><td>1200.00</td></tr>
</table>
</body></html>`

func TestParseStandings(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(scoreboardPage))
	if err != nil {
		t.Fatal(err)
	}
	standings := parseStandings(doc)
	if len(standings) != 2 {
		t.Fatalf("standings = %+v, want 2 rows", standings)
	}
	if standings[1].Team != "the cr0wn" || standings[1].Position != 2 || standings[1].Points != 1200 {
		t.Fatalf("row = %+v", standings[1])
	}
}

func TestRankWatcherStateRoundTrip(t *testing.T) {
	w := &RankWatcher{stateFile: filepath.Join(t.TempDir(), "pos.txt")}
	if got := w.loadPosition(); got != -1 {
		t.Fatalf("loadPosition with no file = %d, want -1", got)
	}
	if err := w.storePosition(17); err != nil {
		t.Fatal(err)
	}
	if got := w.loadPosition(); got != 17 {
		t.Fatalf("loadPosition = %d, want 17", got)
	}
}

func TestNewRankWatcherRequiresConfig(t *testing.T) {
	dir := t.TempDir()
	confPath := filepath.Join(dir, "config.json")
	if err := os.WriteFile(confPath, []byte(`{"rank_team_name": "the cr0wn"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	conf, err := config.Load(confPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	if w := NewRankWatcher(chattest.NewFake(), conf, nil); w != nil {
		t.Fatal("expected nil watcher without a channel")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	srv, _, _ := newTestServer(t, `{"admin_users": []}`)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
