package handlers

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoocare/internal/audio"
	"github.com/yoockh/yoocare/internal/models"
	"github.com/yoockh/yoocare/internal/services"
	"github.com/yoockh/yoocare/internal/utils"
)

// IntakeQueue hands a stored job to the async intake workers.
type IntakeQueue interface {
	Enqueue(ctx context.Context, job *models.IntakeJob, audio []byte, language string) error
}

type IntakeHandler struct {
	intake   services.IntakeService
	jobs     services.IntakeJobService
	queue    IntakeQueue
	pre      services.AudioPreprocessor
	maxBytes int64
	logger   *logrus.Logger
}

func NewIntakeHandler(intake services.IntakeService, jobs services.IntakeJobService, queue IntakeQueue, pre services.AudioPreprocessor, maxBytes int64, l *logrus.Logger) *IntakeHandler {
	if maxBytes <= 0 {
		maxBytes = audio.DefaultMaxBytes
	}
	return &IntakeHandler{intake: intake, jobs: jobs, queue: queue, pre: pre, maxBytes: maxBytes, logger: l}
}

type voiceUpload struct {
	name     string
	ext      string
	data     []byte
	language string
}

func (h *IntakeHandler) readVoice(c *gin.Context, op string) (*voiceUpload, bool) {
	fh, err := c.FormFile("voice_file")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "missing multipart field 'voice_file'", err))
		return nil, false
	}
	if fh.Size <= 0 || fh.Size > h.maxBytes {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "voice file is empty or too large", nil))
		return nil, false
	}

	f, err := fh.Open()
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to open upload", err))
		return nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxBytes+1))
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to read upload", err))
		return nil, false
	}

	up := &voiceUpload{
		name:     filepath.Base(fh.Filename),
		ext:      audio.NormalizeExt(filepath.Ext(fh.Filename)),
		data:     data,
		language: c.PostForm("language"),
	}
	return up, true
}

// Submit runs the whole pipeline within the request.
func (h *IntakeHandler) Submit(c *gin.Context) {
	patientID, ok := requireUserID(c)
	if !ok {
		return
	}
	up, ok := h.readVoice(c, "IntakeHandler.Submit")
	if !ok {
		return
	}

	res, err := h.intake.Submit(c.Request.Context(), services.IntakeRequest{
		PatientID: patientID,
		Audio:     up.data,
		Ext:       up.ext,
		FileName:  up.name,
		Language:  up.language,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type asyncIntakeResponse struct {
	JobID     string    `json:"job_id"`
	Status    string    `json:"status"`
	StatusURL string    `json:"status_url"`
	CreatedAt time.Time `json:"created_at"`
}

// SubmitAsync validates the clip, records a job and queues it for workers.
func (h *IntakeHandler) SubmitAsync(c *gin.Context) {
	const op = "IntakeHandler.SubmitAsync"

	patientID, ok := requireUserID(c)
	if !ok {
		return
	}
	up, ok := h.readVoice(c, op)
	if !ok {
		return
	}
	if err := h.pre.Validate(audio.Clip{Data: up.data, Ext: up.ext}); err != nil {
		writeError(c, err)
		return
	}

	job, err := h.jobs.Create(c.Request.Context(), patientID, up.ext)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.queue.Enqueue(c.Request.Context(), job, up.data, up.language); err != nil {
		_ = h.jobs.Finish(c.Request.Context(), job.JobID, nil, err, 0)
		writeError(c, utils.E(utils.CodeUnavailable, op, "failed to enqueue intake", err))
		return
	}

	c.JSON(http.StatusAccepted, asyncIntakeResponse{
		JobID:     job.JobID,
		Status:    job.Status,
		StatusURL: "/ws/intake/" + job.JobID,
		CreatedAt: job.CreatedAt,
	})
}

func (h *IntakeHandler) GetJob(c *gin.Context) {
	patientID, ok := requireUserID(c)
	if !ok {
		return
	}
	job, err := h.jobs.Get(c.Request.Context(), c.Param("job_id"), patientID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}
