package irc

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ctfcrew/brigade/internal/chat/chattest"
	"github.com/ctfcrew/brigade/internal/config"
	"github.com/ctfcrew/brigade/internal/store"
	"github.com/ctfcrew/brigade/pkg/models"
)

func testManager(t *testing.T) (*Manager, *chattest.Fake, *store.Store[*models.IRCServerInfo]) {
	t.Helper()
	dir := t.TempDir()

	confPath := filepath.Join(dir, "config.json")
	if err := os.WriteFile(confPath, []byte(`{"message_queue_enabled": false}`), 0o600); err != nil {
		t.Fatal(err)
	}
	conf, err := config.Load(confPath, nil)
	if err != nil {
		t.Fatal(err)
	}

	backend := chattest.NewFake()
	st := store.New[*models.IRCServerInfo](filepath.Join(dir, "irc_servers.json"))
	m := NewManager(backend, st, conf, nil)
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(m.Stop)
	return m, backend, st
}

func TestQueueEntryFormatted(t *testing.T) {
	entry := &QueueEntry{Category: "IRC", Sender: "<alice> #ctf", Message: "hello"}
	if got := entry.Formatted(); got != "_IRC_ *<alice> #ctf* : hello" {
		t.Errorf("Formatted() = %q", got)
	}
}

func TestQueueImmediateWhenDisabled(t *testing.T) {
	backend := chattest.NewFake()
	q := NewMessageQueue(backend, false, time.Second, nil)
	q.Start()
	defer q.Stop()

	q.Add(context.Background(), "C1", "IRC", "<alice>", "hi there")
	if !backend.SaidIn("C1", "hi there") {
		t.Fatalf("message not posted immediately: %+v", backend.PostedMessages())
	}
}

func TestQueueFlushGroupsPerChannel(t *testing.T) {
	backend := chattest.NewFake()
	q := NewMessageQueue(backend, true, time.Hour, nil)

	ctx := context.Background()
	q.Add(ctx, "C1", "IRC", "<alice>", "one")
	q.Add(ctx, "C1", "IRC", "<bob>", "two")
	q.Add(ctx, "C2", "IRC", "<carol>", "three")

	if len(backend.PostedMessages()) != 0 {
		t.Fatal("batched messages should not post before flush")
	}
	q.Flush(ctx)

	posted := backend.PostedMessages()
	if len(posted) != 2 {
		t.Fatalf("expected one combined post per channel, got %d", len(posted))
	}
	var c1 string
	for _, p := range posted {
		if p.ChannelID == "C1" {
			c1 = p.Text
		}
	}
	if !strings.Contains(c1, "one") || !strings.Contains(c1, "two") || strings.Contains(c1, "three") {
		t.Errorf("grouping mismatch: %q", c1)
	}
}

func TestAddServerAndPersistence(t *testing.T) {
	m, _, st := testManager(t)

	msg, err := m.AddServer("freenode", "irc.freenode.org", 6667, "brigade", "brigade bot")
	if err != nil {
		t.Fatalf("AddServer: %v", err)
	}
	if msg != "IRC server *freenode* registered." {
		t.Errorf("message = %q", msg)
	}

	if _, err := m.AddServer("freenode", "irc.freenode.org", 6667, "brigade", "bot"); err == nil {
		t.Fatal("duplicate server should fail")
	}

	infos, err := st.Load()
	if err != nil {
		t.Fatal(err)
	}
	info, ok := infos["freenode"]
	if !ok || info.Host != "irc.freenode.org" || info.Port != 6667 {
		t.Fatalf("persisted server = %+v", info)
	}
	if info.Status != models.IRCServerDisconnected {
		t.Errorf("new server status = %q", info.Status)
	}
}

func TestStripSlackLink(t *testing.T) {
	tests := []struct{ in, want string }{
		{"<http://irc.freenode.org|irc.freenode.org>", "irc.freenode.org"},
		{"<https://irc.libera.chat>", "irc.libera.chat"},
		{"irc.libera.chat", "irc.libera.chat"},
	}
	for _, tt := range tests {
		if got := stripSlackLink(tt.in); got != tt.want {
			t.Errorf("stripSlackLink(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBridgeRegistration(t *testing.T) {
	m, _, st := testManager(t)
	if _, err := m.AddServer("libera", "irc.libera.chat", 6667, "brigade", "bot"); err != nil {
		t.Fatal(err)
	}

	msg, err := m.AddBridge("libera", "pwncave", "#pwncave", "C_BRIDGE", "irc-pwncave")
	if err != nil {
		t.Fatalf("AddBridge: %v", err)
	}
	if msg != "Added bridge *libera/pwncave*" {
		t.Errorf("message = %q", msg)
	}

	if _, err := m.AddBridge("nope", "x", "#x", "C1", "x"); err == nil {
		t.Fatal("bridge on unknown server should fail")
	}

	infos, _ := st.Load()
	bridge := infos["libera"].Bridges["pwncave"]
	if bridge == nil || bridge.IRCChannel != "#pwncave" || bridge.SlackChannelID != "C_BRIDGE" {
		t.Fatalf("persisted bridge = %+v", bridge)
	}
	if bridge.Status != models.IRCBridgeDisconnected {
		t.Errorf("new bridge status = %q", bridge.Status)
	}

	if _, err := m.RemoveBridge("libera", "missing"); err == nil {
		t.Fatal("removing unknown bridge should fail")
	}
	msg, err = m.RemoveBridge("libera", "pwncave")
	if err != nil || msg != "Removed bridge *libera/pwncave*" {
		t.Fatalf("RemoveBridge: %q, %v", msg, err)
	}
}

func TestServerLifecycleErrors(t *testing.T) {
	m, _, _ := testManager(t)

	if err := m.StartServer("ghost", "C1"); err == nil {
		t.Error("starting unknown server should fail")
	}
	if err := m.StopServer("ghost"); err == nil {
		t.Error("stopping unknown server should fail")
	}

	if _, err := m.AddServer("libera", "irc.libera.chat", 6667, "brigade", "bot"); err != nil {
		t.Fatal(err)
	}
	if err := m.StopServer("libera"); err == nil {
		t.Error("stopping a disconnected server should fail")
	}
	if err := m.StartBridge("libera", "any"); err == nil {
		t.Error("bridge start on disconnected server should fail")
	}

	msg, err := m.RemoveServer("libera")
	if err != nil || msg != "IRC server *libera* removed." {
		t.Fatalf("RemoveServer: %q, %v", msg, err)
	}
	if _, err := m.RemoveServer("libera"); err == nil {
		t.Error("removing unknown server should fail")
	}
}
