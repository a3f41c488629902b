package transcript

import (
	"fmt"
	"html/template"
	"path/filepath"
	"strings"
)

var htmlPage = template.Must(template.New("transcript").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
.transcript { max-width: 800px; margin: 0 auto; font-family: Arial, sans-serif; }
.transcript-meta { color: #666; font-size: 0.9em; margin-bottom: 20px; }
.transcript-utterance { margin-bottom: 10px; }
.transcript-speaker { font-weight: bold; }
.transcript-time { color: #888; font-size: 0.8em; margin-right: 10px; }
</style>
</head>
<body>
<div class="transcript">
<h1>{{.Title}}</h1>
{{- if .AudioFile}}
<div class="transcript-meta"><p>Audio file: {{.AudioFile}}</p></div>
{{- end}}
{{- if .Lines}}
<div class="transcript-content">
{{- range .Lines}}
<div class="transcript-utterance">
{{- if .Time}}<span class="transcript-time">[{{.Time}}]</span>{{end}}
{{- if .Speaker}}<span class="transcript-speaker speaker-{{.Class}}">{{.Speaker}}:</span> {{end -}}
<span class="transcript-text">{{.Text}}</span></div>
{{- end}}
</div>
{{- else}}
<p>No transcript available.</p>
{{- end}}
</div>
</body>
</html>
`))

type htmlLine struct {
	Time    string
	Speaker string
	Class   string
	Text    string
}

type htmlData struct {
	Title     string
	AudioFile string
	Lines     []htmlLine
}

// formatHTML renders r as a standalone page. Every value passes through
// html/template escaping.
func formatHTML(r Result) (string, error) {
	data := htmlData{Title: "Transcript", AudioFile: r.AudioFile}
	if r.AudioFile != "" {
		data.Title = "Transcript: " + filepath.Base(r.AudioFile)
	}
	for _, u := range r.Utterances {
		if strings.TrimSpace(u.Text) == "" {
			continue
		}
		line := htmlLine{Speaker: u.SpeakerName(), Text: strings.TrimSpace(u.Text)}
		line.Class = strings.ReplaceAll(line.Speaker, " ", "_")
		if u.Start != nil {
			line.Time = clockStamp(*u.Start)
		}
		data.Lines = append(data.Lines, line)
	}

	var b strings.Builder
	if err := htmlPage.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// clockStamp formats seconds as mm:ss.
func clockStamp(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	total := int(sec)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
