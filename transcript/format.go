package transcript

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kbukum/automeet/errors"
)

// Output formats accepted by Format.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatHTML = "html"
)

// Format renders r as text (one "Speaker: text" line per utterance), JSON or
// an HTML page.
func Format(r Result, format string) (string, error) {
	switch strings.ToLower(format) {
	case FormatText, "txt", "":
		return formatText(r), nil
	case FormatJSON:
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return "", errors.Internal(fmt.Errorf("encode transcript: %w", err))
		}
		return string(data), nil
	case FormatHTML, "htm":
		out, err := formatHTML(r)
		if err != nil {
			return "", errors.Internal(fmt.Errorf("render transcript: %w", err))
		}
		return out, nil
	default:
		return "", errors.InvalidInput("format", fmt.Sprintf("unsupported transcript format %q", format))
	}
}

func formatText(r Result) string {
	var b strings.Builder
	for i, u := range r.Utterances {
		if i > 0 {
			b.WriteByte('\n')
		}
		if name := u.SpeakerName(); name != "" {
			b.WriteString(name)
			b.WriteString(": ")
		}
		b.WriteString(u.Text)
	}
	return b.String()
}
