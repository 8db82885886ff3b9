package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/yoocare/internal/quota"
	"github.com/yoockh/yoocare/internal/services"
	"github.com/yoockh/yoocare/internal/utils"
)

type QuotaReporter interface {
	Usage(ctx context.Context) (quota.Usage, error)
	Models() []string
	Capacity(model string) int
	TotalLimit() int
}

type TriageHandler struct {
	diagnosis services.DiagnosisService
	patients  services.PatientService
	matcher   services.SpecialistMatcher
	quota     QuotaReporter
}

func NewTriageHandler(diagnosis services.DiagnosisService, patients services.PatientService, matcher services.SpecialistMatcher, q QuotaReporter) *TriageHandler {
	return &TriageHandler{diagnosis: diagnosis, patients: patients, matcher: matcher, quota: q}
}

type SymptomsRequest struct {
	Symptoms []string `json:"symptoms"`
	Age      *int     `json:"age,omitempty"`
	Gender   *string  `json:"gender,omitempty"`
}

// Symptoms recognizes an initial diagnosis. Missing fields fall back to the
// caller's patient record.
func (h *TriageHandler) Symptoms(c *gin.Context) {
	const op = "TriageHandler.Symptoms"

	patientID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req SymptomsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid request body", err))
		return
	}

	in := services.DiagnosisInput{PatientID: patientID, Symptoms: req.Symptoms}
	if req.Age == nil || req.Gender == nil || len(req.Symptoms) == 0 {
		p, err := h.patients.Get(c.Request.Context(), patientID)
		if err != nil {
			writeError(c, err)
			return
		}
		in.Age, in.Gender = p.Age, p.Gender
		if len(in.Symptoms) == 0 {
			in.Symptoms = p.Symptoms
		}
	}
	if req.Age != nil {
		in.Age = *req.Age
	}
	if req.Gender != nil {
		in.Gender = *req.Gender
	}

	d, err := h.diagnosis.Recognize(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

type specialistView struct {
	Name          string `json:"name"`
	Specialist    string `json:"specialist"`
	SubSpecialist string `json:"sub_specialist,omitempty"`
	Type          string `json:"type,omitempty"`
}

// Specialists lists the loaded catalog without doctor ids or contact details.
func (h *TriageHandler) Specialists(c *gin.Context) {
	cat := h.matcher.Catalog()
	out := make([]specialistView, 0, len(cat))
	for _, e := range cat {
		out = append(out, specialistView{Name: e.Name, Specialist: e.Specialist, SubSpecialist: e.SubSpecialist, Type: e.Type})
	}
	c.JSON(http.StatusOK, gin.H{"specialists": out})
}

type modelQuota struct {
	Model    string `json:"model"`
	Used     int    `json:"used"`
	Capacity int    `json:"capacity"`
}

func (h *TriageHandler) Quota(c *gin.Context) {
	u, err := h.quota.Usage(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	models := make([]modelQuota, 0, len(h.quota.Models()))
	for _, m := range h.quota.Models() {
		models = append(models, modelQuota{Model: m, Used: u.Models[m], Capacity: h.quota.Capacity(m)})
	}
	c.JSON(http.StatusOK, gin.H{
		"models":      models,
		"total_used":  u.Total,
		"total_limit": h.quota.TotalLimit(),
	})
}
