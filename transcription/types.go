package transcription

import (
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/kbukum/automeet/errors"
)

// DefaultAudioExtensions lists the audio containers accepted by default.
var DefaultAudioExtensions = []string{"mp3", "wav", "ogg", "flac", "m4a", "mp4", "webm"}

// Request holds parameters for a transcription call.
type Request struct {
	// AudioPath is the path to the audio file to transcribe.
	AudioPath string `json:"audio_path" validate:"required"`
	// Language is the expected language of the audio (e.g. "pt").
	Language string `json:"language,omitempty"`
	// Model overrides the backend's default model.
	Model string `json:"model,omitempty"`
	// SpeakerLabels asks the backend to attribute utterances to speakers.
	SpeakerLabels bool `json:"speaker_labels,omitempty"`
	// SpeakersExpected hints how many speakers are present.
	SpeakersExpected int `json:"speakers_expected,omitempty" validate:"gte=0"`
}

// ConfigFingerprint returns the settings part of the request as a stable
// string. Two requests for one file with different settings must not share
// a cached result.
func (r Request) ConfigFingerprint() string {
	return strings.Join([]string{
		"lang=" + r.Language,
		"model=" + r.Model,
		"speakers=" + strconv.FormatBool(r.SpeakerLabels),
		"expected=" + strconv.Itoa(r.SpeakersExpected),
	}, ";")
}

// ValidateAudioPath checks that path names an existing regular file with one
// of the allowed extensions. A nil allowed list uses DefaultAudioExtensions.
func ValidateAudioPath(path string, allowed []string) error {
	if strings.TrimSpace(path) == "" {
		return errors.InvalidInput("audio_path", "audio path is required")
	}
	if allowed == nil {
		allowed = DefaultAudioExtensions
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if !slices.Contains(allowed, ext) {
		return errors.InvalidInput("audio_path", "unsupported audio format "+strconv.Quote(ext)).
			WithDetail("allowed", allowed)
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NotFound("audio file", path)
		}
		return errors.InvalidInput("audio_path", err.Error())
	}
	if !info.Mode().IsRegular() {
		return errors.InvalidInput("audio_path", "not a regular file")
	}
	return nil
}
