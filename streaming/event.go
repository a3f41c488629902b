package streaming

// Event is one recognition result from a streaming source.
type Event struct {
	Text       string   `json:"text"`
	IsFinal    bool     `json:"is_final"`
	Confidence *float64 `json:"confidence"`
	Speaker    *string  `json:"speaker"`
	StartTime  *float64 `json:"start_time"`
	EndTime    *float64 `json:"end_time"`
}

// Partial returns a non-final event carrying text.
func Partial(text string) Event {
	return Event{Text: text}
}

// Final returns a final event carrying text.
func Final(text string) Event {
	return Event{Text: text, IsFinal: true}
}

// ConfidenceOr returns the event confidence or def when the source gave none.
func (e Event) ConfidenceOr(def float64) float64 {
	if e.Confidence == nil {
		return def
	}
	return *e.Confidence
}
