// Package media extracts transcribable audio from video and other
// containers by running ffmpeg as a subprocess.
//
// Run executes any command with process-group cancellation: a cancelled
// context sends SIGTERM to the whole group and SIGKILL after the grace
// period. Extractor builds the ffmpeg invocation, picking a lower bitrate
// and sample rate for inputs above the large-file threshold.
package media
