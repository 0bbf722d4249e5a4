package commands

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ctfcrew/brigade/internal/chat/chattest"
	"github.com/ctfcrew/brigade/internal/config"
)

func testConfig(t *testing.T, content string) *config.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	conf, err := config.Load(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	return conf
}

func newTestRegistry(t *testing.T, confJSON string) (*Registry, *recordingCommand, *recordingCommand) {
	t.Helper()
	r := NewRegistry(testConfig(t, confJSON), nil)
	h, public, restricted := newTestHandler()
	r.Register(h)

	ping := NewHandler("bot")
	ping.Register("ping", &Descriptor{Command: public, Description: "Ping the bot"})
	r.Register(ping)
	return r, public, restricted
}

func TestExplicitHandlerDispatch(t *testing.T) {
	r, public, _ := newTestRegistry(t, `{}`)
	backend := chattest.NewFake()

	r.ProcessMessage(context.Background(), backend, `ctf addchallenge pwn200 pwn`, "ts1", "C1", "U1")

	if public.calls != 1 {
		t.Fatalf("command ran %d times, want 1", public.calls)
	}
	if got := public.last.Args; len(got) != 2 || got[0] != "pwn200" || got[1] != "pwn" {
		t.Errorf("args = %v", got)
	}
	if public.last.ChannelID != "C1" || public.last.UserID != "U1" || public.last.IsAdmin {
		t.Errorf("invocation context = %+v", public.last)
	}
}

func TestBroadcastDispatch(t *testing.T) {
	r, _, _ := newTestRegistry(t, `{}`)

	shared1 := &recordingCommand{}
	shared2 := &recordingCommand{}
	r.Handler("ctf").Register("status", &Descriptor{Command: shared1, Description: "CTF status"})
	r.Handler("bot").Register("status", &Descriptor{Command: shared2, Description: "Bot status"})

	backend := chattest.NewFake()
	r.ProcessMessage(context.Background(), backend, "status", "ts1", "C1", "U1")

	if shared1.calls != 1 || shared2.calls != 1 {
		t.Errorf("broadcast should hit both handlers: %d, %d", shared1.calls, shared2.calls)
	}
}

func TestUnknownCommandReply(t *testing.T) {
	r, _, _ := newTestRegistry(t, `{}`)
	backend := chattest.NewFake()

	r.ProcessMessage(context.Background(), backend, "nosuchthing at all", "ts1", "C1", "U1")

	if !backend.SaidIn("C1", "Unknown handler or command : `nosuchthing at all`") {
		t.Fatalf("missing unknown-command reply, got %+v", backend.PostedMessages())
	}
}

func TestMalformedInputReply(t *testing.T) {
	r, public, _ := newTestRegistry(t, `{}`)
	backend := chattest.NewFake()

	r.ProcessMessage(context.Background(), backend, `ctf addchallenge "unterminated`, "ts1", "C1", "U1")

	if !backend.SaidIn("C1", "Command failed : Malformed input.") {
		t.Fatalf("missing malformed-input reply, got %+v", backend.PostedMessages())
	}
	if public.calls != 0 {
		t.Error("nothing should dispatch on malformed input")
	}
}

func TestAdminCommandInvisibleToNonAdmin(t *testing.T) {
	r, _, restricted := newTestRegistry(t, `{"admin_users": ["U_ADMIN"]}`)
	backend := chattest.NewFake()

	// Non-admin attempt reads as an unknown command, no permission hint.
	r.ProcessMessage(context.Background(), backend, "ctf endctf", "ts1", "C1", "U_PLEB")
	if restricted.calls != 0 {
		t.Fatal("admin command ran for non-admin")
	}
	if !backend.SaidIn("C1", "Unknown handler or command") {
		t.Fatalf("expected unknown-command reply, got %+v", backend.PostedMessages())
	}
	for _, p := range backend.PostedMessages() {
		if strings.Contains(p.Text, "permission") || strings.Contains(p.Text, "admin") {
			t.Errorf("reply leaks permission information: %q", p.Text)
		}
	}

	r.ProcessMessage(context.Background(), backend, "ctf endctf", "ts2", "C1", "U_ADMIN")
	if restricted.calls != 1 {
		t.Error("admin command should run for admin")
	}
}

func TestMaintenanceModeUniform(t *testing.T) {
	r, public, restricted := newTestRegistry(t, `{"maintenance_mode": true, "admin_users": ["U_ADMIN"]}`)
	backend := chattest.NewFake()

	r.ProcessMessage(context.Background(), backend, "ctf solve pwn200", "ts1", "C1", "U_PLEB")
	r.ProcessMessage(context.Background(), backend, "bot ping", "ts2", "C1", "U_PLEB")

	if public.calls != 0 {
		t.Fatal("maintenance mode must block non-admin commands in every handler")
	}
	var blocked int
	for _, p := range backend.PostedMessages() {
		if p.Text == MaintenanceMessage {
			blocked++
		}
	}
	if blocked != 2 {
		t.Errorf("expected 2 maintenance replies, got %d", blocked)
	}

	r.ProcessMessage(context.Background(), backend, "ctf endctf", "ts3", "C1", "U_ADMIN")
	if restricted.calls != 1 {
		t.Error("admin commands are unaffected by maintenance mode")
	}
}

func TestHandlerHelp(t *testing.T) {
	r, _, _ := newTestRegistry(t, `{}`)
	backend := chattest.NewFake()

	r.ProcessMessage(context.Background(), backend, "ctf help", "ts1", "C1", "U1")
	if !backend.SaidIn("C1", "Usage of handler `ctf`") {
		t.Fatalf("missing handler usage, got %+v", backend.PostedMessages())
	}

	// A bare handler name also yields its usage.
	backend2 := chattest.NewFake()
	r.ProcessMessage(context.Background(), backend2, "ctf", "ts2", "C1", "U1")
	if !backend2.SaidIn("C1", "Usage of handler `ctf`") {
		t.Fatal("bare handler name should print usage")
	}
}

func TestCombinedHelp(t *testing.T) {
	r, _, _ := newTestRegistry(t, `{}`)
	backend := chattest.NewFake()

	r.ProcessMessage(context.Background(), backend, "help", "ts1", "C1", "U1")

	last := backend.LastPosted()
	if !strings.Contains(last.Text, "Usage of handler `ctf`") || !strings.Contains(last.Text, "Usage of handler `bot`") {
		t.Fatalf("combined help missing a handler:\n%s", last.Text)
	}
}

func TestHelpAsDirectMessage(t *testing.T) {
	r, _, _ := newTestRegistry(t, `{"send_help_as_dm": "1"}`)
	backend := chattest.NewFake()

	r.ProcessMessage(context.Background(), backend, "help", "ts1", "C1", "U1")

	last := backend.LastPosted()
	if last.ChannelID != "U1" {
		t.Fatalf("help should go to the user, went to %q", last.ChannelID)
	}
}

func TestUserErrorPostedToChannel(t *testing.T) {
	r, _, _ := newTestRegistry(t, `{}`)
	failing := CommandFunc(func(_ context.Context, _ *Invocation) error {
		return Errorf("Challenge `%s` not found.", "pwn999")
	})
	r.Handler("ctf").Register("fail", &Descriptor{Command: failing, Description: "Always fails"})

	backend := chattest.NewFake()
	r.ProcessMessage(context.Background(), backend, "ctf fail", "ts1", "C1", "U1")

	if !backend.SaidIn("C1", "Challenge `pwn999` not found.") {
		t.Fatalf("user error not relayed, got %+v", backend.PostedMessages())
	}
}

func TestPanicDoesNotEscape(t *testing.T) {
	r, _, _ := newTestRegistry(t, `{}`)
	r.Handler("ctf").Register("boom", &Descriptor{Command: CommandFunc(func(_ context.Context, _ *Invocation) error {
		panic("broken command")
	}), Description: "Panics"})

	backend := chattest.NewFake()
	// Must not panic the dispatcher.
	r.ProcessMessage(context.Background(), backend, "ctf boom", "ts1", "C1", "U1")
}

func TestReactionDispatch(t *testing.T) {
	r, _, _ := newTestRegistry(t, `{}`)
	refresher := &recordingCommand{}
	r.Handler("ctf").RegisterReaction("arrows_counterclockwise", &Descriptor{Command: refresher})

	backend := chattest.NewFake()
	r.ProcessReaction(context.Background(), backend, "arrows_counterclockwise", "ts1", "C1", "U1")
	r.ProcessReaction(context.Background(), backend, "thumbsup", "ts1", "C1", "U1")

	if refresher.calls != 1 {
		t.Errorf("reaction command ran %d times, want 1", refresher.calls)
	}
	if refresher.last.Timestamp != "ts1" {
		t.Errorf("reaction invocation timestamp = %q", refresher.last.Timestamp)
	}
}
