package transcript

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/kbukum/automeet/errors"
)

func sampleResult() Result {
	return New("meeting.mp4", []Utterance{
		{Speaker: Ptr("A"), Text: "Good morning.", Start: Ptr(0.0), End: Ptr(1.2)},
		{Speaker: Ptr("B"), Text: " Morning! "},
		{Text: ""},
		{Speaker: Ptr("A"), Text: "Let's start."},
	})
}

func TestNew_JoinsText(t *testing.T) {
	r := sampleResult()
	if want := "Good morning. Morning! Let's start."; r.Text != want {
		t.Errorf("expected %q, got %q", want, r.Text)
	}
	if r.AudioFile != "meeting.mp4" {
		t.Errorf("unexpected audio file %q", r.AudioFile)
	}
}

func TestSpeakers(t *testing.T) {
	if got := sampleResult().Speakers(); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("unexpected speakers %v", got)
	}
}

func TestFormat_Text(t *testing.T) {
	out, err := Format(sampleResult(), "text")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(out, "\n")
	if len(lines) != 4 || lines[0] != "A: Good morning." || lines[3] != "A: Let's start." {
		t.Errorf("unexpected text output:\n%s", out)
	}
}

func TestFormat_JSONNullOptionals(t *testing.T) {
	out, err := Format(New("a.wav", []Utterance{{Text: "hi"}}), FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatal(err)
	}
	u := decoded["utterances"].([]any)[0].(map[string]any)
	if u["speaker"] != nil || u["start"] != nil {
		t.Errorf("expected null optionals, got %v", u)
	}
}

func TestFormat_Unsupported(t *testing.T) {
	if _, err := Format(sampleResult(), "pdf"); !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestFormat_HTMLEscapesContent(t *testing.T) {
	r := New("talk <1>.mp4", []Utterance{
		{Speaker: Ptr("Speaker A"), Text: "<script>alert(1)</script>", Start: Ptr(75.4)},
		{Text: "no speaker & no time"},
		{Speaker: Ptr("B"), Text: "  "},
	})
	out, err := Format(r, FormatHTML)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "<script>") {
		t.Fatalf("utterance text was not escaped:\n%s", out)
	}
	for _, want := range []string{
		"&lt;script&gt;alert(1)&lt;/script&gt;",
		"[01:15]",
		"speaker-Speaker_A",
		"Speaker A:</span>",
		"no speaker &amp; no time",
		"talk &lt;1&gt;.mp4",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Count(out, `class="transcript-utterance"`) != 2 {
		t.Errorf("blank utterances should be skipped:\n%s", out)
	}
}

func TestFormat_HTMLEmpty(t *testing.T) {
	out, err := Format(New("", nil), "HTML")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No transcript available.") || !strings.HasPrefix(out, "<!DOCTYPE html>") {
		t.Errorf("unexpected empty page:\n%s", out)
	}
}

func TestResult_CloneIsDeep(t *testing.T) {
	r := sampleResult()
	c := r.Clone()
	*c.Utterances[0].Speaker = "Z"
	*c.Utterances[0].Start = 9
	c.Utterances[1].Text = "changed"
	if r.Utterances[0].SpeakerName() != "A" || *r.Utterances[0].Start != 0 || r.Utterances[1].Text != " Morning! " {
		t.Errorf("clone shares memory with original: %+v", r.Utterances[:2])
	}
	if New("", nil).Clone().Utterances != nil {
		t.Error("nil utterances should stay nil")
	}
}
