// Package streaming assembles incremental recognition events into a
// transcript.
//
// A Session keeps an ordered list of final segments and at most one trailing
// partial. A final event is appended and clears the partial; a partial
// replaces the previous partial. Once closed, a session rejects further
// events with ErrSessionClosed and stays readable.
package streaming
