package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Log only records alerts; used when no transport is configured.
type Log struct {
	logger *logrus.Logger
}

func NewLog(l *logrus.Logger) *Log { return &Log{logger: l} }

func (l *Log) Method() string { return "log" }

func (l *Log) Send(_ context.Context, a Alert) error {
	l.logger.WithFields(logrus.Fields{
		"run_id":     a.RunID,
		"doctor_id":  a.DoctorID,
		"patient_id": a.PatientID,
		"urgency":    a.Urgency,
		"disease":    a.Disease,
	}).Info("alert (log channel)")
	return nil
}
