package media

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kbukum/automeet/errors"
	"github.com/kbukum/automeet/logger"
)

// VideoExtensions are containers whose audio track must be extracted
// before transcription.
var VideoExtensions = []string{
	"mp4", "avi", "mov", "mkv", "wmv", "flv", "webm", "m4v", "3gp", "mpg",
	"mpeg", "ts", "m2ts", "vob", "ogv", "divx", "aac", "wma", "aiff", "ac3", "amr",
}

// Config tunes audio extraction.
type Config struct {
	// FFmpeg is the ffmpeg binary. Defaults to "ffmpeg" on PATH.
	FFmpeg string `yaml:"ffmpeg" mapstructure:"ffmpeg"`
	// Extensions are the inputs that need extraction. Defaults to VideoExtensions.
	Extensions []string `yaml:"extensions" mapstructure:"extensions"`
	Bitrate    string   `yaml:"bitrate" mapstructure:"bitrate"`
	SampleRate int      `yaml:"sample_rate" mapstructure:"sample_rate"`
	// LargeFileThreshold is the input size in bytes above which the large
	// file bitrate and sample rate apply.
	LargeFileThreshold int64  `yaml:"large_file_threshold" mapstructure:"large_file_threshold"`
	LargeFileBitrate   string `yaml:"large_file_bitrate" mapstructure:"large_file_bitrate"`
	LargeFileRate      int    `yaml:"large_file_sample_rate" mapstructure:"large_file_sample_rate"`
	// TempDir receives the extracted files. Empty uses os.TempDir.
	TempDir string `yaml:"temp_dir" mapstructure:"temp_dir"`
	// Timeout bounds one ffmpeg run. Zero means no limit beyond the caller's.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// DefaultConfig returns the settings used for unset fields.
func DefaultConfig() Config {
	return Config{
		FFmpeg:             "ffmpeg",
		Extensions:         VideoExtensions,
		Bitrate:            "128k",
		SampleRate:         44100,
		LargeFileThreshold: 100 * 1024 * 1024,
		LargeFileBitrate:   "96k",
		LargeFileRate:      22050,
		Timeout:            30 * time.Minute,
	}
}

// ApplyDefaults fills unset fields from DefaultConfig.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.FFmpeg == "" {
		c.FFmpeg = d.FFmpeg
	}
	if c.Extensions == nil {
		c.Extensions = d.Extensions
	}
	if c.Bitrate == "" {
		c.Bitrate = d.Bitrate
	}
	if c.SampleRate == 0 {
		c.SampleRate = d.SampleRate
	}
	if c.LargeFileThreshold == 0 {
		c.LargeFileThreshold = d.LargeFileThreshold
	}
	if c.LargeFileBitrate == "" {
		c.LargeFileBitrate = d.LargeFileBitrate
	}
	if c.LargeFileRate == 0 {
		c.LargeFileRate = d.LargeFileRate
	}
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
}

// Extractor converts media files to mp3 with ffmpeg.
type Extractor struct {
	cfg Config
	log *logger.Logger
	run func(context.Context, Command) (*Result, error)
}

// NewExtractor creates an Extractor. It does not check that ffmpeg exists;
// see IsAvailable.
func NewExtractor(cfg Config, log *logger.Logger) *Extractor {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Get("media")
	}
	return &Extractor{cfg: cfg, log: log, run: Run}
}

// IsAvailable reports whether the ffmpeg binary can be found.
func (e *Extractor) IsAvailable(context.Context) bool {
	_, err := exec.LookPath(e.cfg.FFmpeg)
	return err == nil
}

// Handles reports whether path needs extraction before transcription.
func (e *Extractor) Handles(path string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return slices.Contains(e.cfg.Extensions, ext)
}

// Extract writes the audio track of src to a new mp3 file and returns its
// path. The caller removes the file when done.
func (e *Extractor) Extract(ctx context.Context, src string) (string, error) {
	info, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NotFound("media file", src)
		}
		return "", errors.InvalidInput("audio_path", err.Error())
	}

	out, err := os.CreateTemp(e.cfg.TempDir, "automeet-*.mp3")
	if err != nil {
		return "", errors.Internal(err)
	}
	dst := out.Name()
	_ = out.Close()

	bitrate, rate := e.cfg.Bitrate, e.cfg.SampleRate
	large := info.Size() > e.cfg.LargeFileThreshold
	if large {
		bitrate, rate = e.cfg.LargeFileBitrate, e.cfg.LargeFileRate
	}

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	e.log.Info("extracting audio", logger.Fields(
		"source", src,
		"size_bytes", info.Size(),
		"large_file", large,
		"bitrate", bitrate,
	))
	res, err := e.run(ctx, Command{Binary: e.cfg.FFmpeg, Args: ffmpegArgs(src, dst, bitrate, rate)})
	if err != nil {
		_ = os.Remove(dst)
		if ctx.Err() != nil {
			return "", errors.Cancelled("audio extraction", ctx.Err())
		}
		return "", errors.InvalidInput("audio_path", "could not extract audio").
			WithCause(err).
			WithDetail("stderr", res.StderrTail(512))
	}

	e.log.Debug("audio extracted", logger.Fields(
		"source", src,
		"output", dst,
		logger.FieldDuration, res.Duration.Milliseconds(),
	))
	return dst, nil
}

// ffmpegArgs drops any video stream and re-encodes the audio as mp3.
func ffmpegArgs(src, dst, bitrate string, rate int) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", src,
		"-vn",
		"-acodec", "libmp3lame",
		"-b:a", bitrate,
		"-ar", strconv.Itoa(rate),
		dst,
	}
}
