package server

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/automeet/errors"
	"github.com/kbukum/automeet/logger"
	"github.com/kbukum/automeet/orchestrator"
	"github.com/kbukum/automeet/ratelimit"
	"github.com/kbukum/automeet/server/endpoint"
	"github.com/kbukum/automeet/server/middleware"
	"github.com/kbukum/automeet/sse"
	"github.com/kbukum/automeet/transcript"
	"github.com/kbukum/automeet/transcription"
	"github.com/kbukum/automeet/validation"
)

// Service is the orchestrator surface the API needs.
type Service interface {
	Transcribe(ctx context.Context, req orchestrator.TranscribeRequest) (*transcript.Result, error)
	Submit(ctx context.Context, req orchestrator.TranscribeRequest) (orchestrator.Job, error)
	Job(id string) (orchestrator.Job, error)
	Jobs() []orchestrator.Job
	AnalyzeText(ctx context.Context, req orchestrator.AnalyzeRequest) (string, error)
}

// API holds the route handlers.
type API struct {
	svc       Service
	events    *sse.Hub
	uploadDir string
	log       *logger.Logger
}

// RegisterRoutes mounts the health and version endpoints and the /v1 API on s. limiters
// backs per-client rate limiting when cfg.RateLimit is enabled. A nil
// events hub leaves out the job event stream.
func (s *Server) RegisterRoutes(serviceName string, svc Service, checker endpoint.HealthChecker, limiters *ratelimit.Registry, events *sse.Hub) {
	api := &API{svc: svc, events: events, uploadDir: s.config.UploadDir, log: s.log}

	s.engine.GET("/health", endpoint.Health(serviceName, checker))
	s.engine.GET("/version", endpoint.Version())

	v1 := s.engine.Group("/v1")
	if rl := s.config.RateLimit; rl.Enabled && limiters != nil {
		v1.Use(middleware.RateLimit(limiters, middleware.RateLimitConfig{
			Capacity:   rl.Capacity,
			RefillRate: rl.RefillRate,
		}, s.log))
	}
	v1.POST("/transcriptions", api.transcribe)
	v1.GET("/jobs", api.listJobs)
	v1.GET("/jobs/:id", api.getJob)
	if events != nil {
		v1.GET("/jobs/:id/events", api.jobEvents)
	}
	v1.POST("/analysis", api.analyze)
}

// transcriptionBody is accepted as JSON or as multipart form fields next to
// an uploaded "file".
type transcriptionBody struct {
	Path             string `json:"path" form:"path"`
	Language         string `json:"language" form:"language"`
	Model            string `json:"model" form:"model"`
	SpeakerLabels    bool   `json:"speaker_labels" form:"speaker_labels"`
	SpeakersExpected int    `json:"speakers_expected" form:"speakers_expected"`
	Force            bool   `json:"force" form:"force"`
	Async            bool   `json:"async" form:"async"`
}

func (b transcriptionBody) request(path string) orchestrator.TranscribeRequest {
	return orchestrator.TranscribeRequest{
		Request: transcription.Request{
			AudioPath:        path,
			Language:         b.Language,
			Model:            b.Model,
			SpeakerLabels:    b.SpeakerLabels,
			SpeakersExpected: b.SpeakersExpected,
		},
		Force: b.Force,
	}
}

// transcribe handles POST /v1/transcriptions. A JSON body names a file the
// service can read; a multipart upload is stored, transcribed synchronously
// and removed.
func (a *API) transcribe(c *gin.Context) {
	var body transcriptionBody
	if err := c.ShouldBind(&body); err != nil {
		RespondWithError(c, errors.InvalidInput("body", err.Error()))
		return
	}

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		a.transcribeUpload(c, body)
		return
	}

	req := body.request(body.Path)
	if body.Async {
		job, err := a.svc.Submit(c.Request.Context(), req)
		if err != nil {
			RespondWithError(c, err)
			return
		}
		RespondAccepted(c, job)
		return
	}

	result, err := a.svc.Transcribe(c.Request.Context(), req)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, result)
}

func (a *API) transcribeUpload(c *gin.Context, body transcriptionBody) {
	if body.Async {
		RespondWithError(c, errors.InvalidInput("async", "uploads are transcribed synchronously"))
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		RespondWithError(c, errors.InvalidInput("file", "a file upload is required"))
		return
	}

	ext := filepath.Ext(file.Filename)
	if ext == "" {
		ext = ".mp4"
	}
	tmp, err := os.CreateTemp(a.uploadDir, "upload-*"+strings.ToLower(ext))
	if err != nil {
		RespondWithError(c, errors.Internal(err))
		return
	}
	path := tmp.Name()
	_ = tmp.Close()
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			a.log.Warn("failed to remove upload", logger.Fields("path", path, logger.FieldError, err.Error()))
		}
	}()

	if err := c.SaveUploadedFile(file, path); err != nil {
		RespondWithError(c, errors.Internal(err))
		return
	}

	result, err := a.svc.Transcribe(c.Request.Context(), body.request(path))
	if err != nil {
		RespondWithError(c, err)
		return
	}
	result.AudioFile = file.Filename
	RespondOK(c, result)
}

func (a *API) listJobs(c *gin.Context) {
	RespondOK(c, a.svc.Jobs())
}

func (a *API) getJob(c *gin.Context) {
	id := c.Param("id")
	if err := validation.New().RequiredUUID("id", id).Validate(); err != nil {
		RespondWithError(c, err)
		return
	}
	job, err := a.svc.Job(id)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, job)
}

// jobEvents streams a job's state changes as Server-Sent Events, starting
// with its current state. The stream ends once the job is done.
func (a *API) jobEvents(c *gin.Context) {
	id := c.Param("id")
	if err := validation.New().RequiredUUID("id", id).Validate(); err != nil {
		RespondWithError(c, err)
		return
	}
	if _, err := a.svc.Job(id); err != nil {
		RespondWithError(c, err)
		return
	}

	sse.Serve(a.events, c.Writer, c.Request, JobTopic(id)+uuid.NewString(), sse.ServeOptions{
		Initial: func() []sse.Event {
			job, err := a.svc.Job(id)
			if err != nil {
				return nil
			}
			e, err := JobEvent(job)
			if err != nil {
				return nil
			}
			return []sse.Event{e}
		},
	})
}

// JobTopic is the client ID prefix of a job's event subscribers.
func JobTopic(id string) string { return "job:" + id + ":" }

// JobEvent encodes a job snapshot as a stream event. Finished jobs end
// the stream.
func JobEvent(job orchestrator.Job) (sse.Event, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return sse.Event{}, err
	}
	return sse.Event{Type: sse.EventJob, Data: data, Final: job.Status.Done()}, nil
}

// PublishJob sends a job snapshot to its subscribers.
func PublishJob(hub *sse.Hub, job orchestrator.Job) error {
	e, err := JobEvent(job)
	if err != nil {
		return err
	}
	hub.Publish(JobTopic(job.ID)+"*", e)
	return nil
}

func (a *API) analyze(c *gin.Context) {
	var req orchestrator.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, errors.InvalidInput("body", err.Error()))
		return
	}
	analysis, err := a.svc.AnalyzeText(c.Request.Context(), req)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, gin.H{"analysis": analysis})
}
