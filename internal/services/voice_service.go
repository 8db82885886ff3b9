package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoocare/internal/models"
	pgrepo "github.com/yoockh/yoocare/internal/repositories/postgres"
	"github.com/yoockh/yoocare/internal/retry"
	"github.com/yoockh/yoocare/internal/storage"
	"github.com/yoockh/yoocare/internal/utils"
)

type VoiceUpload struct {
	PatientID string
	FileName  string
	Ext       string
	Data      []byte
}

type VoiceService interface {
	// Store uploads the raw clip. Only the upload is fatal; a failed
	// metadata insert is logged and the stored file is still returned.
	Store(ctx context.Context, in VoiceUpload) (*models.VoiceFile, error)
	List(ctx context.Context, patientID string, limit int) ([]models.VoiceFile, error)
}

type voiceService struct {
	repo     pgrepo.VoiceFileRepository
	uploader storage.Uploader
	retry    retry.Policy
	logger   *logrus.Logger
}

func NewVoiceService(repo pgrepo.VoiceFileRepository, uploader storage.Uploader, policy retry.Policy, l *logrus.Logger) VoiceService {
	if l == nil {
		l = logrus.New()
	}
	return &voiceService{repo: repo, uploader: uploader, retry: policy, logger: l}
}

func (s *voiceService) Store(ctx context.Context, in VoiceUpload) (*models.VoiceFile, error) {
	const op = "VoiceService.Store"

	if in.PatientID == "" || len(in.Data) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "patient_id and audio are required", nil)
	}
	if s.uploader == nil {
		return nil, utils.E(utils.CodeInternal, op, "uploader is not configured", nil)
	}

	id := uuid.NewString()
	objectName := fmt.Sprintf("voice/%s/%s%s", in.PatientID, id, in.Ext)
	mime := storage.ContentType(in.Ext)

	url, err := retry.DoValue(ctx, s.retry, func() (string, error) {
		return s.uploader.Upload(ctx, objectName, mime, bytes.NewReader(in.Data))
	})
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to upload voice file", err)
	}

	name := in.FileName
	if name == "" {
		name = id + in.Ext
	}
	row := &models.VoiceFile{
		ID:         id,
		PatientID:  in.PatientID,
		FileName:   name,
		URL:        url,
		FileSize:   int64(len(in.Data)),
		MimeType:   mime,
		UploadedAt: time.Now().UTC(),
	}

	if s.repo != nil {
		if err := s.repo.Insert(ctx, row); err != nil {
			s.logger.WithFields(logrus.Fields{"op": op, "patient_id": in.PatientID, "url": url}).
				WithError(err).Warn("failed to persist voice file metadata")
		}
	}
	return row, nil
}

func (s *voiceService) List(ctx context.Context, patientID string, limit int) ([]models.VoiceFile, error) {
	const op = "VoiceService.List"

	if patientID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "patient_id is required", nil)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.repo.ListByPatient(ctx, patientID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list voice files", err)
	}
	return rows, nil
}
