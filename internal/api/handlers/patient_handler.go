package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/yoocare/internal/models"
	"github.com/yoockh/yoocare/internal/services"
	"github.com/yoockh/yoocare/internal/utils"
)

type PatientHandler struct {
	svc    services.PatientService
	voices services.VoiceService
	audits services.AuditQueryService
}

func NewPatientHandler(svc services.PatientService, voices services.VoiceService, audits services.AuditQueryService) *PatientHandler {
	return &PatientHandler{svc: svc, voices: voices, audits: audits}
}

func (h *PatientHandler) Me(c *gin.Context) {
	patientID, ok := requireUserID(c)
	if !ok {
		return
	}

	p, err := h.svc.Get(c.Request.Context(), patientID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type UpdatePatientRequest struct {
	FullName *string   `json:"full_name,omitempty"`
	Email    *string   `json:"email,omitempty"`
	Phone    *string   `json:"phone_number,omitempty"`
	Age      *int      `json:"age,omitempty"`
	Gender   *string   `json:"gender,omitempty"`
	Symptoms *[]string `json:"symptoms,omitempty"`
	History  *string   `json:"history,omitempty"`
}

func (h *PatientHandler) Update(c *gin.Context) {
	patientID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req UpdatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "PatientHandler.Update", "invalid request body", err))
		return
	}

	// not found => create
	existing, err := h.svc.Get(c.Request.Context(), patientID)
	if err != nil {
		if !utils.IsCode(err, utils.CodeNotFound) {
			writeError(c, err)
			return
		}
		existing = &models.Patient{ID: patientID}
	}

	if req.FullName != nil {
		existing.FullName = *req.FullName
	}
	if req.Email != nil {
		existing.Email = *req.Email
	}
	if req.Phone != nil {
		existing.Phone = *req.Phone
	}
	if req.Age != nil {
		existing.Age = *req.Age
	}
	if req.Gender != nil {
		existing.Gender = *req.Gender
	}
	if req.Symptoms != nil {
		existing.Symptoms = *req.Symptoms
	}
	if req.History != nil {
		existing.History = *req.History
	}
	existing.UpdatedAt = time.Now().UTC()

	if err := h.svc.Upsert(c.Request.Context(), existing); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, existing)
}

func (h *PatientHandler) History(c *gin.Context) {
	patientID, ok := requireUserID(c)
	if !ok {
		return
	}
	out, err := h.audits.PatientHistory(c.Request.Context(), patientID, int64(queryInt(c, "limit", 50)))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}

func (h *PatientHandler) Voices(c *gin.Context) {
	patientID, ok := requireUserID(c)
	if !ok {
		return
	}
	out, err := h.voices.List(c.Request.Context(), patientID, queryInt(c, "limit", 20))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}
