package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAndGetters(t *testing.T) {
	path := writeConfig(t, `{
		// comments are fine, the file is hand-edited
		"bot_name": "brigade",
		"send_help_as_dm": "1",
		"maintenance_mode": false,
		"message_queue_interval": 5,
		"admin_users": ["U_ADMIN1", "U_ADMIN2"],
	}`)

	s, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := s.GetString("bot_name"); got != "brigade" {
		t.Errorf("bot_name = %q", got)
	}
	if !s.GetBool("send_help_as_dm") {
		t.Error("send_help_as_dm should parse string toggle as true")
	}
	if s.GetBool("maintenance_mode") {
		t.Error("maintenance_mode should be false")
	}
	if got := s.GetInt("message_queue_interval", 0); got != 5 {
		t.Errorf("message_queue_interval = %d", got)
	}
	if got := s.GetStringSlice("admin_users"); len(got) != 2 || got[0] != "U_ADMIN1" {
		t.Errorf("admin_users = %v", got)
	}
	if s.GetInt("missing", 42) != 42 {
		t.Error("missing int should fall back to default")
	}
}

func TestSetPersistsAndReloads(t *testing.T) {
	path := writeConfig(t, `{"bot_name": "brigade"}`)

	s, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.Set("maintenance_mode", true); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// A fresh load must observe the written value.
	s2, err := Load(path, nil)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !s2.GetBool("maintenance_mode") {
		t.Fatal("Set value did not survive reload")
	}
}

func TestAdminList(t *testing.T) {
	path := writeConfig(t, `{"admin_users": ["U_ADMIN"]}`)

	s, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !s.IsAdmin("U_ADMIN") || s.IsAdmin("U_OTHER") {
		t.Fatal("IsAdmin mismatch")
	}

	added, err := s.AddAdmin("U_NEW")
	if err != nil || !added {
		t.Fatalf("AddAdmin: added=%v err=%v", added, err)
	}
	added, err = s.AddAdmin("U_NEW")
	if err != nil || added {
		t.Fatalf("duplicate AddAdmin: added=%v err=%v", added, err)
	}

	removed, err := s.RemoveAdmin("U_NEW")
	if err != nil || !removed {
		t.Fatalf("RemoveAdmin: removed=%v err=%v", removed, err)
	}
	removed, err = s.RemoveAdmin("U_NEW")
	if err != nil || removed {
		t.Fatalf("missing RemoveAdmin: removed=%v err=%v", removed, err)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json"), nil); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
