package slack

import (
	"log/slog"
	"testing"

	"github.com/ctfcrew/brigade/internal/chat"
)

func testBackend() *Backend {
	return &Backend{
		identity: chat.Identity{UserID: "U_BOT", Name: "brigade"},
		logger:   slog.Default(),
		events:   make(chan chat.Event, 10),
	}
}

func TestCommandText(t *testing.T) {
	b := testBackend()

	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bang prefix", "!ctf status", "ctf status", true},
		{"bang with whitespace", "  !help  ", "help", true},
		{"mention prefix", "<@U_BOT> ctf status", "ctf status", true},
		{"mention no command", "<@U_BOT>", "", false},
		{"bare bang", "!", "", false},
		{"plain chatter", "we should try rop here", "", false},
		{"other mention", "<@U_OTHER> ping", "", false},
		{"mid-message bang", "look at !this", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := b.commandText(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("commandText(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestEmitDropsWhenFull(t *testing.T) {
	b := testBackend()
	b.events = make(chan chat.Event, 1)

	b.emit(t.Context(), chat.Event{Kind: chat.EventCommand, Text: "first"})
	b.emit(t.Context(), chat.Event{Kind: chat.EventCommand, Text: "second"})

	select {
	case ev := <-b.events:
		if ev.Text != "first" {
			t.Fatalf("kept event = %q, want first", ev.Text)
		}
	default:
		t.Fatal("expected one buffered event")
	}
	select {
	case ev := <-b.events:
		t.Fatalf("unexpected extra event %q", ev.Text)
	default:
	}
}
