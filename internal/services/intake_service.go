package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoocare/internal/audio"
	"github.com/yoockh/yoocare/internal/models"
	"github.com/yoockh/yoocare/internal/observability/metrics"
	"github.com/yoockh/yoocare/internal/utils"
)

// Pipeline stage names, also published to async intake subscribers.
const (
	StageValidate   = "validate"
	StagePatient    = "patient"
	StageStore      = "store"
	StagePreprocess = "preprocess"
	StageTranscribe = "transcribe"
	StageExtract    = "extract"
	StageAnalyze    = "analyze"
	StageMatch      = "match"
	StageAssign     = "assign"
	StageAlert      = "alert"
	StageAudit      = "audit"
)

type AudioPreprocessor interface {
	Validate(c audio.Clip) error
	Process(ctx context.Context, c audio.Clip) (audio.Waveform, error)
}

type PatientLookup interface {
	GetByID(ctx context.Context, id string) (*models.Patient, error)
}

type IntakeRequest struct {
	RunID     string
	PatientID string
	Audio     []byte
	Ext       string
	FileName  string
	Language  string

	// OnStage, when set, is called as each stage starts.
	OnStage func(stage string)
}

type IntakeResult struct {
	RunID             string                `json:"run_id"`
	Transcript        string                `json:"transcript"`
	Language          string                `json:"language,omitempty"`
	PatientContext    string                `json:"patient_context"`
	Risk              models.RiskAssessment `json:"risk"`
	MatchedDoctorID   *string               `json:"matched_doctor_id"`
	MatchedSpecialist string                `json:"matched_specialist,omitempty"`
	AlertSent         bool                  `json:"alert_sent"`
	Alert             models.AlertRecord    `json:"alert"`
	VoiceURL          string                `json:"voice_url"`
	AuditID           string                `json:"audit_id,omitempty"`
	Status            string                `json:"status"`
}

// IntakeService runs one voice submission through every stage in order.
// Fatal stage errors are returned typed; every run leaves one audit entry.
// On a fatal error the result is partial: RunID, Status and AuditID are set.
type IntakeService interface {
	Submit(ctx context.Context, req IntakeRequest) (*IntakeResult, error)
}

type IntakeDeps struct {
	Preprocessor AudioPreprocessor
	Patients     PatientLookup
	Voices       VoiceService
	Transcriber  Transcriber
	Extractor    ContextExtractor
	Analyzer     RiskAnalyzer
	Matcher      SpecialistMatcher
	Balancer     AssignmentBalancer
	Dispatcher   AlertDispatcher
	Auditor      AuditRecorder
	Metrics      *metrics.Metrics
	Logger       *logrus.Logger
}

type intakeService struct {
	IntakeDeps
	now func() time.Time
}

func NewIntakeService(d IntakeDeps) IntakeService {
	d.Metrics = metricsOrDefault(d.Metrics)
	if d.Logger == nil {
		d.Logger = logrus.New()
	}
	return &intakeService{IntakeDeps: d, now: time.Now}
}

// run carries per-run state between stages. It is never shared.
type run struct {
	req      IntakeRequest
	log      *logrus.Entry
	patient  *models.Patient
	clip     audio.Clip
	audit    *models.AuditReview
	result   *IntakeResult
	degraded bool
}

func (s *intakeService) Submit(ctx context.Context, req IntakeRequest) (*IntakeResult, error) {
	const op = "IntakeService.Submit"

	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	r := &run{
		req:  req,
		clip: audio.Clip{Data: req.Audio, Ext: audio.NormalizeExt(req.Ext)},
		log: s.Logger.WithFields(logrus.Fields{
			"op":         op,
			"run_id":     req.RunID,
			"patient_id": req.PatientID,
		}),
		audit: &models.AuditReview{
			RunID:     req.RunID,
			PatientID: req.PatientID,
			Keywords:  []string{},
			Alert: models.AlertRecord{
				Urgency:   models.UrgencyLow,
				Method:    []string{},
				Timestamp: s.now().UTC(),
			},
		},
		result: &IntakeResult{RunID: req.RunID},
	}

	err := s.execute(ctx, r)
	switch {
	case err != nil:
		r.audit.Status = models.AuditStatusFailed
		r.audit.Error = string(utils.CodeOf(err))
	case r.degraded:
		r.audit.Status = models.AuditStatusDegraded
	default:
		r.audit.Status = models.AuditStatusCompleted
	}
	r.result.Status = r.audit.Status

	// the audit entry is written even when the caller has gone away
	s.notify(r, StageAudit)
	if r.audit.PatientID != "" {
		id, aerr := s.Auditor.Record(context.WithoutCancel(ctx), r.audit)
		if aerr != nil {
			r.log.WithError(aerr).Error("failed to record audit entry")
		}
		r.result.AuditID = id
	}

	s.Metrics.RecordRun(r.audit.Status)
	if err != nil {
		r.log.WithFields(logrus.Fields{"code": utils.CodeOf(err)}).WithError(err).Warn("intake run failed")
		return r.result, err
	}
	r.log.WithFields(logrus.Fields{
		"status":     r.result.Status,
		"alert_sent": r.result.AlertSent,
	}).Info("intake run finished")
	return r.result, nil
}

func (s *intakeService) execute(ctx context.Context, r *run) error {
	if err := s.stage(ctx, r, StageValidate, s.validate); err != nil {
		return err
	}
	if err := s.stage(ctx, r, StagePatient, s.lookupPatient); err != nil {
		return err
	}
	if err := s.stage(ctx, r, StageStore, s.store); err != nil {
		return err
	}

	var wf audio.Waveform
	if err := s.stage(ctx, r, StagePreprocess, func(ctx context.Context, r *run) error {
		var err error
		wf, err = s.Preprocessor.Process(ctx, r.clip)
		return err
	}); err != nil {
		return err
	}

	if err := s.stage(ctx, r, StageTranscribe, func(ctx context.Context, r *run) error {
		tr, err := s.Transcriber.Transcribe(ctx, wf, r.req.Language)
		if err != nil {
			return err
		}
		r.audit.Transcript = tr.Text()
		r.audit.Language = tr.Language
		r.result.Transcript = r.audit.Transcript
		r.result.Language = tr.Language
		return nil
	}); err != nil {
		return err
	}

	if err := s.stage(ctx, r, StageExtract, func(ctx context.Context, r *run) error {
		pc, err := s.Extractor.Extract(ctx, r.audit.Transcript)
		if err != nil {
			return err
		}
		r.audit.PatientContext = pc
		r.result.PatientContext = pc
		return nil
	}); err != nil {
		return err
	}

	if err := s.stage(ctx, r, StageAnalyze, s.analyze); err != nil {
		return err
	}

	primary, _ := r.audit.Risk.Primary()
	var match MatchResult
	if err := s.stage(ctx, r, StageMatch, func(ctx context.Context, r *run) error {
		m, err := s.Matcher.Match(ctx, primary.RecommendedSpecialist)
		if utils.IsCode(err, utils.CodeNotFound) {
			r.log.WithField("recommended", primary.RecommendedSpecialist).Info("no specialist matched; alert skipped")
			return nil
		}
		match = m
		return err
	}); err != nil {
		return err
	}

	var doctor *models.SpecialistEntry
	if match.Matched {
		r.result.MatchedSpecialist = match.Specialist
		entry := match.Entry
		doctor = &entry
	}

	if doctor != nil && primary.Urgency.Alertable() {
		if err := s.stage(ctx, r, StageAssign, func(ctx context.Context, r *run) error {
			candidates := s.Matcher.Candidates(match.Specialist)
			if len(candidates) == 0 {
				candidates = []models.SpecialistEntry{match.Entry}
			}
			chosen, count, err := s.Balancer.Assign(ctx, candidates)
			if err != nil {
				return err
			}
			doctor = &chosen
			r.log.WithFields(logrus.Fields{"doctor_id": chosen.DoctorID, "count": count}).Debug("doctor assigned")
			return nil
		}); err != nil {
			return err
		}
	}
	if doctor != nil {
		id := doctor.DoctorID
		r.result.MatchedDoctorID = &id
	}

	s.notify(r, StageAlert)
	rec := s.Dispatcher.Dispatch(ctx, AlertInput{
		RunID:   r.req.RunID,
		Urgency: primary.Urgency,
		Doctor:  doctor,
		Patient: r.patient,
		Risk:    primary,
		Context: r.audit.PatientContext,
	})
	if primary.Urgency.Alertable() && doctor != nil && !rec.Sent {
		r.degraded = true
	}
	r.audit.Alert = rec
	r.result.Alert = rec
	r.result.AlertSent = rec.Sent
	return nil
}

func (s *intakeService) validate(_ context.Context, r *run) error {
	if r.req.PatientID == "" {
		return utils.E(utils.CodeInvalidArgument, "IntakeService.validate", "patient_id is required", nil)
	}
	return s.Preprocessor.Validate(r.clip)
}

func (s *intakeService) lookupPatient(ctx context.Context, r *run) error {
	const op = "IntakeService.lookupPatient"

	p, err := s.Patients.GetByID(ctx, r.req.PatientID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) || utils.IsCode(err, utils.CodeNotFound) {
			return utils.E(utils.CodeNotFound, op, "patient not found", err)
		}
		return utils.E(utils.CodeUnavailable, op, "patient lookup failed", err)
	}
	r.patient = p
	return nil
}

func (s *intakeService) store(ctx context.Context, r *run) error {
	vf, err := s.Voices.Store(ctx, VoiceUpload{
		PatientID: r.req.PatientID,
		FileName:  r.req.FileName,
		Ext:       r.clip.Ext,
		Data:      r.clip.Data,
	})
	if err != nil {
		return err
	}
	r.audit.VoiceURL = vf.URL
	r.result.VoiceURL = vf.URL
	return nil
}

func (s *intakeService) analyze(ctx context.Context, r *run) error {
	ra, err := s.Analyzer.Analyze(ctx, RiskInput{
		Age:           r.patient.Age,
		Gender:        r.patient.Gender,
		PriorSymptoms: r.patient.Symptoms,
		History:       r.patient.History,
		Context:       r.audit.PatientContext,
		At:            s.now(),
	})
	if err != nil {
		return err
	}
	r.audit.Risk = ra
	r.result.Risk = ra

	primary, _ := ra.Primary()
	if primary.Error != "" {
		r.degraded = true
		s.Metrics.RecordStageError(StageAnalyze, string(utils.CodeParse))
	}
	r.audit.Disease = primary.Disease
	r.audit.Keywords = keywords(primary, r.patient)
	return nil
}

// keywords are the primary symptoms, or the patient's reported symptoms when
// the assessment has none.
func keywords(primary models.RiskEntry, p *models.Patient) []string {
	if len(primary.Symptoms) > 0 {
		return append([]string{}, primary.Symptoms...)
	}
	if p != nil && len(p.Symptoms) > 0 {
		return append([]string{}, p.Symptoms...)
	}
	return []string{}
}

func (s *intakeService) stage(ctx context.Context, r *run, name string, fn func(context.Context, *run) error) error {
	s.notify(r, name)
	start := time.Now()
	err := fn(ctx, r)
	s.Metrics.RecordStage(name, time.Since(start))
	if err != nil {
		s.Metrics.RecordStageError(name, string(utils.CodeOf(err)))
		r.log.WithField("stage", name).WithError(err).Debug("stage failed")
	}
	return err
}

func (s *intakeService) notify(r *run, stage string) {
	if r.req.OnStage != nil {
		r.req.OnStage(stage)
	}
}
