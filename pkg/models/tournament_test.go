package models

import "testing"

func TestTournamentSignups(t *testing.T) {
	tm := NewTournament("T1", "pwn-off1", "pwn", "U_ORGANIZER")

	if !tm.AcceptSignups {
		t.Fatal("new tournament should accept signups")
	}

	tm.AddPlayer("U1")
	tm.AddPlayer("U1")
	tm.AddPlayer("U2")
	if len(tm.Players) != 2 {
		t.Fatalf("expected 2 players, got %d", len(tm.Players))
	}

	tm.CloseSignups()
	if tm.AcceptSignups {
		t.Fatal("signups should be closed")
	}
	tm.OpenSignups()
	if !tm.AcceptSignups {
		t.Fatal("signups should be open again")
	}

	tm.RemovePlayer("U1")
	tm.RemovePlayer("U_UNKNOWN") // no-op
	if tm.HasPlayer("U1") || !tm.HasPlayer("U2") {
		t.Fatalf("unexpected player set: %v", tm.Players)
	}
}
