package transcript

import "strings"

// DefaultSpeaker labels utterances from sources that do not attribute speakers.
const DefaultSpeaker = "Speaker 1"

// Utterance is one stretch of speech. Speaker, Start and End are optional.
type Utterance struct {
	Speaker *string  `json:"speaker"`
	Text    string   `json:"text"`
	Start   *float64 `json:"start"`
	End     *float64 `json:"end"`
}

// SpeakerName returns the speaker label or "" when unknown.
func (u Utterance) SpeakerName() string {
	if u.Speaker == nil {
		return ""
	}
	return *u.Speaker
}

// Result is an ordered transcript with its denormalized full text.
type Result struct {
	ID         string      `json:"id,omitempty"`
	Utterances []Utterance `json:"utterances"`
	Text       string      `json:"text"`
	AudioFile  string      `json:"audio_file"`
	Language   string      `json:"language,omitempty"`
}

// New builds a Result whose Text is the utterance texts joined by a space.
func New(audioFile string, utterances []Utterance) Result {
	return Result{
		Utterances: utterances,
		Text:       JoinText(utterances),
		AudioFile:  audioFile,
	}
}

// JoinText joins non-empty utterance texts with a single space.
func JoinText(utterances []Utterance) string {
	parts := make([]string, 0, len(utterances))
	for _, u := range utterances {
		if t := strings.TrimSpace(u.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// Speakers returns distinct speaker labels in order of first appearance.
func (r Result) Speakers() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, u := range r.Utterances {
		name := u.SpeakerName()
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// Clone returns a deep copy of r that shares no slices or pointers with it.
func (r Result) Clone() Result {
	if r.Utterances != nil {
		us := make([]Utterance, len(r.Utterances))
		for i, u := range r.Utterances {
			us[i] = u.Clone()
		}
		r.Utterances = us
	}
	return r
}

// Clone returns a copy of u with its optional fields copied.
func (u Utterance) Clone() Utterance {
	u.Speaker = clonePtr(u.Speaker)
	u.Start = clonePtr(u.Start)
	u.End = clonePtr(u.End)
	return u
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Ptr returns a pointer to v, for filling optional fields.
func Ptr[T any](v T) *T { return &v }
