package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoocare/internal/models"
	"github.com/yoockh/yoocare/internal/observability/metrics"
	"github.com/yoockh/yoocare/internal/providers/notify"
	"github.com/yoockh/yoocare/internal/utils"
	"golang.org/x/time/rate"
)

type AlertInput struct {
	RunID   string
	Urgency models.Urgency
	Doctor  *models.SpecialistEntry
	Patient *models.Patient
	Risk    models.RiskEntry
	Context string
}

type AlertDispatcher interface {
	// Dispatch never fails; delivery problems are reflected in the record.
	Dispatch(ctx context.Context, in AlertInput) models.AlertRecord
}

type alertDispatcher struct {
	channel notify.Channel
	limiter *rate.Limiter
	metrics *metrics.Metrics
	logger  *logrus.Logger
	now     func() time.Time
}

// NewAlertDispatcher sends through channel at most perMinute alerts per minute
// (burst of the same size). perMinute <= 0 disables limiting.
func NewAlertDispatcher(channel notify.Channel, perMinute int, m *metrics.Metrics, l *logrus.Logger) AlertDispatcher {
	lim := rate.NewLimiter(rate.Inf, 0)
	if perMinute > 0 {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	}
	if l == nil {
		l = logrus.New()
	}
	return &alertDispatcher{channel: channel, limiter: lim, metrics: metricsOrDefault(m), logger: l, now: time.Now}
}

func (d *alertDispatcher) Dispatch(ctx context.Context, in AlertInput) models.AlertRecord {
	const op = "AlertDispatcher.Dispatch"

	rec := models.AlertRecord{
		Urgency:   in.Urgency,
		Method:    []string{},
		Timestamp: d.now().UTC(),
	}
	if in.Doctor != nil {
		id := in.Doctor.DoctorID
		rec.DoctorID = &id
		rec.Specialist = in.Doctor.Specialist
	}

	if !in.Urgency.Alertable() || in.Doctor == nil || d.channel == nil {
		d.metrics.RecordAlert("skipped")
		return rec
	}

	if err := d.send(ctx, in); err != nil {
		d.metrics.RecordAlert("failed")
		d.logger.WithFields(logrus.Fields{
			"op":        op,
			"run_id":    in.RunID,
			"doctor_id": in.Doctor.DoctorID,
			"method":    d.channel.Method(),
			"code":      utils.CodeDeliveryFailed,
		}).WithError(err).Warn("alert delivery failed")
		return rec
	}

	d.metrics.RecordAlert("sent")
	rec.Sent = true
	rec.Method = []string{d.channel.Method()}
	return rec
}

// send makes exactly one delivery attempt.
func (d *alertDispatcher) send(ctx context.Context, in AlertInput) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	a := notify.Alert{
		RunID:       in.RunID,
		DoctorID:    in.Doctor.DoctorID,
		DoctorName:  in.Doctor.Name,
		DoctorEmail: in.Doctor.Email,
		Disease:     in.Risk.Disease,
		Urgency:     string(in.Urgency),
		Symptoms:    in.Risk.Symptoms,
		Description: in.Context,
		Specialist:  in.Doctor.Specialist,
		CreatedAt:   d.now().UTC(),
	}
	if in.Patient != nil {
		a.PatientID = in.Patient.ID
		a.PatientName = in.Patient.FullName
	}
	return d.channel.Send(ctx, a)
}
