package services

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/yoockh/yoointerview/internal/models"
	pgrepo "github.com/yoockh/yoointerview/internal/repositories/postgres"
	"github.com/yoockh/yoointerview/internal/storage"
	"github.com/yoockh/yoointerview/internal/utils"
)

type CVFileService interface {
	Upload(ctx context.Context, userID string, fileName string, fileSize int, mimeType string, objectName string, r io.Reader) (*models.CVFile, error)
	// LatestURL returns the newest CV of the user and a signed URL to read it.
	LatestURL(ctx context.Context, userID string, ttl time.Duration) (*models.CVFile, string, error)
}

type cvFileService struct {
	repo     pgrepo.CVFileRepository
	uploader storage.Uploader
	signer   storage.Signer
}

func NewCVFileService(repo pgrepo.CVFileRepository, uploader storage.Uploader, signer storage.Signer) CVFileService {
	return &cvFileService{repo: repo, uploader: uploader, signer: signer}
}

func (s *cvFileService) Upload(ctx context.Context, userID string, fileName string, fileSize int, mimeType string, objectName string, r io.Reader) (*models.CVFile, error) {
	const op = "CVFileService.Upload"

	if userID == "" || objectName == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id and object_name are required", nil)
	}
	if s.uploader == nil {
		return nil, utils.E(utils.CodeInternal, op, "uploader is not configured", nil)
	}

	storedPath, err := s.uploader.Upload(ctx, objectName, mimeType, r)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to upload file", err)
	}

	row := &models.CVFile{
		ID:       uuid.NewString(),
		UserID:   userID,
		FileName: fileName,
		FilePath: storedPath,
		FileSize: fileSize,
		MimeType: mimeType,
		UploadAt: time.Now().UTC(),
	}

	if err := s.repo.Insert(ctx, row); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to persist cv file metadata", err)
	}

	return row, nil
}

func (s *cvFileService) LatestURL(ctx context.Context, userID string, ttl time.Duration) (*models.CVFile, string, error) {
	const op = "CVFileService.LatestURL"

	if userID == "" {
		return nil, "", utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	if s.signer == nil {
		return nil, "", utils.E(utils.CodeInternal, op, "signer is not configured", nil)
	}

	row, err := s.repo.LatestByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, "", utils.E(utils.CodeNotFound, op, "no cv uploaded", err)
		}
		return nil, "", utils.E(utils.CodeInternal, op, "failed to get cv file", err)
	}

	url, err := s.signer.SignedGetURL(ctx, row.FilePath, ttl)
	if err != nil {
		return nil, "", utils.E(utils.CodeUnavailable, op, "failed to sign cv url", err)
	}
	return row, url, nil
}
