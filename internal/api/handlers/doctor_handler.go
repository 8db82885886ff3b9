package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/yoocare/internal/models"
	"github.com/yoockh/yoocare/internal/services"
)

type DoctorHandler struct {
	audits services.AuditQueryService
}

func NewDoctorHandler(audits services.AuditQueryService) *DoctorHandler {
	return &DoctorHandler{audits: audits}
}

type alertView struct {
	AuditID   string         `json:"audit_id"`
	PatientID string         `json:"patient_id"`
	Disease   string         `json:"detected_disease"`
	Keywords  []string       `json:"keywords"`
	Context   string         `json:"patient_context"`
	Urgency   models.Urgency `json:"urgency"`
	Sent      bool           `json:"alert_sent"`
	Method    []string       `json:"method"`
	CreatedAt time.Time      `json:"created_at"`
}

// Alerts lists triaged runs routed to the calling doctor, newest first.
func (h *DoctorHandler) Alerts(c *gin.Context) {
	doctorID, ok := requireUserID(c)
	if !ok {
		return
	}

	rows, err := h.audits.DoctorAlerts(c.Request.Context(), doctorID, int64(queryInt(c, "limit", 50)))
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]alertView, 0, len(rows))
	for _, a := range rows {
		out = append(out, alertView{
			AuditID:   a.ID.Hex(),
			PatientID: a.PatientID,
			Disease:   a.Disease,
			Keywords:  a.Keywords,
			Context:   a.PatientContext,
			Urgency:   a.Alert.Urgency,
			Sent:      a.Alert.Sent,
			Method:    a.Alert.Method,
			CreatedAt: a.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}
