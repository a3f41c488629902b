package transcription

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kbukum/automeet/errors"
)

func TestRequest_ConfigFingerprint(t *testing.T) {
	a := Request{AudioPath: "a.mp3", Language: "pt"}
	b := Request{AudioPath: "b.mp3", Language: "pt"}
	if a.ConfigFingerprint() != b.ConfigFingerprint() {
		t.Error("audio path must not be part of the config fingerprint")
	}
	c := Request{AudioPath: "a.mp3", Language: "pt", SpeakerLabels: true}
	if a.ConfigFingerprint() == c.ConfigFingerprint() {
		t.Error("expected speaker labels to change the fingerprint")
	}
}

func TestValidateAudioPath(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "call.MP3")
	if err := os.WriteFile(good, []byte("ID3"), 0o600); err != nil {
		t.Fatal(err)
	}
	txt := filepath.Join(dir, "notes.txt")
	_ = os.WriteFile(txt, []byte("x"), 0o600)

	tests := []struct {
		name string
		path string
		code errors.ErrorCode
	}{
		{"valid", good, ""},
		{"empty", " ", errors.ErrCodeInvalidInput},
		{"extension", txt, errors.ErrCodeInvalidInput},
		{"missing", filepath.Join(dir, "gone.wav"), errors.ErrCodeNotFound},
		{"directory", filepath.Join(dir, "folder.wav"), errors.ErrCodeInvalidInput},
	}
	_ = os.Mkdir(filepath.Join(dir, "folder.wav"), 0o750)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAudioPath(tt.path, nil)
			if tt.code == "" {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			if !errors.HasCode(err, tt.code) {
				t.Fatalf("expected %s, got %v", tt.code, err)
			}
		})
	}
}
