package models

import "testing"

func TestIRCServerBridges(t *testing.T) {
	srv := NewIRCServerInfo("libera", "irc.libera.chat", 6667, "brigade", "brigade bridge")

	if srv.Status != IRCServerDisconnected {
		t.Fatalf("new server status = %q", srv.Status)
	}

	b := srv.AddBridge("main", "#ctf", "C1", "ctf-general")
	if b.Status != IRCBridgeDisconnected {
		t.Fatalf("new bridge status = %q", b.Status)
	}

	if got := srv.BridgeForIRCChannel("#ctf"); got != b {
		t.Fatal("BridgeForIRCChannel did not find the bridge")
	}
	if got := srv.BridgeForSlackChannel("C1"); got != b {
		t.Fatal("BridgeForSlackChannel did not find the bridge")
	}
	if srv.BridgeForIRCChannel("#other") != nil {
		t.Fatal("unexpected bridge for unknown channel")
	}

	if !srv.RemoveBridge("main") {
		t.Fatal("RemoveBridge should report success")
	}
	if srv.RemoveBridge("main") {
		t.Fatal("RemoveBridge on missing bridge should report failure")
	}
}
