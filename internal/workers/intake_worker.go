package workers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoocare/internal/models"
	"github.com/yoockh/yoocare/internal/observability/metrics"
	"github.com/yoockh/yoocare/internal/services"
	"github.com/yoockh/yoocare/internal/utils"
)

const (
	DefaultStream = "intake:stream"
	DefaultGroup  = "intake-workers"
)

// Queue appends intake jobs to a Redis stream.
type Queue struct {
	Redis  *redis.Client
	Stream string
	// MaxLen caps the stream (approximate trim); 0 keeps everything.
	MaxLen int64
}

func (q *Queue) Enqueue(ctx context.Context, job *models.IntakeJob, audio []byte, language string) error {
	stream := q.Stream
	if stream == "" {
		stream = DefaultStream
	}
	return q.Redis.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: q.MaxLen,
		Approx: q.MaxLen > 0,
		Values: map[string]any{
			"job_id":       job.JobID,
			"patient_id":   job.PatientID,
			"ext":          job.Ext,
			"language":     language,
			"audio_base64": base64.StdEncoding.EncodeToString(audio),
			"ts_unix":      strconv.FormatInt(time.Now().UTC().Unix(), 10),
		},
	}).Err()
}

type IntakeWorkerPool struct {
	Redis      *redis.Client
	Intake     services.IntakeService
	Jobs       services.IntakeJobService
	NumWorkers int

	Metrics *metrics.Metrics
	Logger  *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
	// RunTimeout bounds one pipeline run; 0 means no bound.
	RunTimeout time.Duration
}

func (p *IntakeWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Intake == nil || p.Jobs == nil {
		return errors.New("IntakeWorkerPool missing dependency: Redis/Intake/Jobs must be set")
	}
	if p.Stream == "" {
		p.Stream = DefaultStream
	}
	if p.Group == "" {
		p.Group = DefaultGroup
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 5
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}
	if p.Metrics == nil {
		p.Metrics = metrics.Default
	}

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	return nil
}

func (p *IntakeWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    1,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handleMsg(ctx, msg)
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

type intakeMsg struct {
	JobID     string
	PatientID string
	Ext       string
	Language  string
	Audio     []byte
}

func parseIntakeMsg(values map[string]any) (intakeMsg, error) {
	get := func(k string) string {
		s, _ := values[k].(string)
		return s
	}
	m := intakeMsg{
		JobID:     get("job_id"),
		PatientID: get("patient_id"),
		Ext:       get("ext"),
		Language:  get("language"),
	}
	if m.JobID == "" || m.PatientID == "" {
		return m, errors.New("job_id and patient_id are required")
	}
	audio, err := base64.StdEncoding.DecodeString(get("audio_base64"))
	if err != nil {
		return m, err
	}
	if len(audio) == 0 {
		return m, errors.New("empty audio")
	}
	m.Audio = audio
	return m, nil
}

func (p *IntakeWorkerPool) publish(ctx context.Context, st services.IntakeStatus) {
	b, _ := json.Marshal(st)
	_ = p.Redis.Publish(ctx, services.IntakeStatusChannel(st.JobID), b).Err()
}

func (p *IntakeWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	m, err := parseIntakeMsg(msg.Values)
	log := p.Logger.WithFields(logrus.Fields{
		"redis_id":   msg.ID,
		"job_id":     m.JobID,
		"patient_id": m.PatientID,
	})
	if err != nil {
		log.WithError(err).Warn("dropping malformed intake message")
		p.Metrics.RecordWorkerJob("malformed")
		if m.JobID != "" {
			_ = p.Jobs.Finish(ctx, m.JobID, nil, utils.E(utils.CodeInvalidArgument, "IntakeWorker", "malformed message", err), 0)
			p.publish(ctx, services.IntakeStatus{Type: "error", JobID: m.JobID, Status: services.JobFailed, Code: string(utils.CodeInvalidArgument)})
		}
		return
	}

	runCtx := ctx
	if p.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.RunTimeout)
		defer cancel()
	}

	start := time.Now()
	res, runErr := p.Intake.Submit(runCtx, services.IntakeRequest{
		RunID:     m.JobID,
		PatientID: m.PatientID,
		Audio:     m.Audio,
		Ext:       m.Ext,
		Language:  m.Language,
		OnStage: func(stage string) {
			_ = p.Jobs.MarkStage(ctx, m.JobID, stage)
			p.publish(ctx, services.IntakeStatus{Type: "status", JobID: m.JobID, Stage: stage, Status: services.JobProcessing})
		},
	})
	ms := time.Since(start).Milliseconds()

	if err := p.Jobs.Finish(ctx, m.JobID, res, runErr, ms); err != nil {
		log.WithError(err).Warn("failed to finish intake job")
	}

	if runErr != nil {
		log.WithError(runErr).Warn("intake job failed")
		p.Metrics.RecordWorkerJob(services.JobFailed)
		var ae *utils.AppError
		msgText := "intake failed"
		if errors.As(runErr, &ae) {
			msgText = ae.Message
		}
		p.publish(ctx, services.IntakeStatus{
			Type:    "error",
			JobID:   m.JobID,
			Status:  services.JobFailed,
			Code:    string(utils.CodeOf(runErr)),
			Message: msgText,
		})
		return
	}

	p.Metrics.RecordWorkerJob(services.JobDone)
	log.WithField("processing_time_ms", ms).Info("intake job done")
	p.publish(ctx, services.IntakeStatus{Type: "result", JobID: m.JobID, Status: services.JobDone, Result: res})
}
