package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFingerprint(t *testing.T) {
	a := Fingerprint("meeting.mp4", "pt")
	if a != Fingerprint("meeting.mp4", "pt") {
		t.Error("expected deterministic output")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
	if Fingerprint("ab", "c") == Fingerprint("a", "bc") {
		t.Error("expected part boundaries to matter")
	}
	if Fingerprint() == Fingerprint("") {
		t.Error("expected empty part to differ from no parts")
	}
}

func TestFileFingerprint(t *testing.T) {
	p := filepath.Join(t.TempDir(), "audio.wav")
	if err := os.WriteFile(p, []byte("RIFF"), 0o600); err != nil {
		t.Fatal(err)
	}

	first, err := FileFingerprint(p, "cfg-a")
	if err != nil {
		t.Fatal(err)
	}
	if other, _ := FileFingerprint(p, "cfg-b"); other == first {
		t.Error("expected config fingerprint to change the key")
	}

	if err := os.WriteFile(p, []byte("RIFF-longer"), 0o600); err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(time.Minute)
	_ = os.Chtimes(p, later, later)
	if changed, _ := FileFingerprint(p, "cfg-a"); changed == first {
		t.Error("expected modified file to change the key")
	}

	if _, err := FileFingerprint(filepath.Join(t.TempDir(), "missing.wav"), ""); err == nil {
		t.Error("expected error for a missing file")
	}
}
