package media

import (
	"bytes"
	"io"
	"time"
)

// Command configures a subprocess to execute.
type Command struct {
	// Binary is the executable path or name (resolved via PATH).
	Binary string
	// Args are the command-line arguments.
	Args []string
	// Dir is the working directory. Empty uses the current directory.
	Dir string
	// Env is additional KEY=value pairs merged with os.Environ.
	Env []string
	// Stdin provides input to the process. May be nil.
	Stdin io.Reader
	// GracePeriod is the wait between SIGTERM and SIGKILL. Zero means 5s.
	GracePeriod time.Duration
}

// Result holds the output and status of a completed subprocess.
type Result struct {
	Stdout []byte
	Stderr []byte
	// ExitCode is -1 if the process was killed.
	ExitCode int
	Duration time.Duration
}

// StderrTail returns at most n trailing bytes of stderr, trimmed.
func (r *Result) StderrTail(n int) string {
	if r == nil {
		return ""
	}
	s := r.Stderr
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return string(bytes.TrimSpace(s))
}
