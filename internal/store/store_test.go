package store

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/ctfcrew/brigade/pkg/models"
)

func newCTFStore(t *testing.T) *Store[*models.CTF] {
	t.Helper()
	return New[*models.CTF](filepath.Join(t.TempDir(), "ctf.json"))
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	s := newCTFStore(t)

	entries, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty mapping, got %d entries", len(entries))
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newCTFStore(t)

	ctf := models.NewCTF("CTF1", "democtf", "Demo CTF")
	ctf.CredUser = "team"
	ctf.CredPW = "hunter2"
	ctf.CredURL = "https://demo.ctf"
	chal := models.NewChallenge("C1", "CTF1", "pwn200", "pwn")
	chal.MarkAsSolved([]string{"alice"}, time.Unix(1700000000, 0))
	chal.AddPlayer("U1")
	chal.AddTag("heap")
	ctf.AddChallenge(chal)

	in := map[string]*models.CTF{"CTF1": ctf}
	if err := s.Save(in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch:\n in: %+v\nout: %+v", in["CTF1"], out["CTF1"])
	}
}

func TestUpdateMutatesAndPersists(t *testing.T) {
	s := newCTFStore(t)
	if err := s.Save(map[string]*models.CTF{"CTF1": models.NewCTF("CTF1", "democtf", "Demo CTF")}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	updated, err := s.Update("CTF1", func(c *models.CTF) {
		c.LongName = "Renamed"
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.LongName != "Renamed" {
		t.Fatalf("mutation not applied: %+v", updated)
	}

	entries, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if entries["CTF1"].LongName != "Renamed" {
		t.Fatal("mutation was not persisted")
	}
}

func TestUpdateMissingEntry(t *testing.T) {
	s := newCTFStore(t)

	_, err := s.Update("NOPE", func(c *models.CTF) {})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTransactionInsertRemove(t *testing.T) {
	s := newCTFStore(t)

	err := s.Transaction(func(entries map[string]*models.CTF) error {
		entries["CTF1"] = models.NewCTF("CTF1", "democtf", "Demo CTF")
		entries["CTF2"] = models.NewCTF("CTF2", "otherctf", "Other CTF")
		return nil
	})
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}

	err = s.Transaction(func(entries map[string]*models.CTF) error {
		delete(entries, "CTF2")
		return nil
	})
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}

	entries, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	// A failing transaction must not persist anything.
	boom := errors.New("boom")
	err = s.Transaction(func(entries map[string]*models.CTF) error {
		delete(entries, "CTF1")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected transaction error, got %v", err)
	}
	entries, _ = s.Load()
	if len(entries) != 1 {
		t.Fatal("failed transaction should not persist")
	}
}

func TestCorruptSnapshotFailsLoudly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctf.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := New[*models.CTF](path)
	if _, err := s.Load(); err == nil {
		t.Fatal("expected error for corrupt snapshot")
	}
}
