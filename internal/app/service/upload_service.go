package service

import (
	"context"
	"errors"

	"github.com/truecar-kr/truecar-backend/internal/storage"
	"github.com/truecar-kr/truecar-backend/pkg/logger"
)

const reviewImageFolder = "reviews"

var ErrInvalidImage = errors.New("invalid image")

// ImageHost stores image bytes and returns a public URL.
type ImageHost interface {
	Upload(ctx context.Context, key, contentType string, body []byte) (string, error)
	PresignUpload(ctx context.Context, filename, contentType, folder string) (*storage.PresignedURLResponse, error)
}

// UploadService handles review photo uploads for admins.
type UploadService interface {
	UploadReviewImage(ctx context.Context, callerEmail, filename string, data []byte) (string, error)
	PresignReviewImage(ctx context.Context, callerEmail, filename, contentType string) (*storage.PresignedURLResponse, error)
}

type uploadService struct {
	host      ImageHost
	processor *storage.ImageProcessor
	gate      AdminGate
}

func NewUploadService(host ImageHost, processor *storage.ImageProcessor, gate AdminGate) UploadService {
	return &uploadService{host: host, processor: processor, gate: gate}
}

// UploadReviewImage compresses the image and stores it as JPEG.
func (s *uploadService) UploadReviewImage(ctx context.Context, callerEmail, filename string, data []byte) (string, error) {
	if err := s.gate.RequireAdmin(ctx, callerEmail); err != nil {
		return "", err
	}

	compressed, err := s.processor.Compress(data)
	if err != nil {
		logger.Warn("Rejected review image", map[string]interface{}{
			"filename": filename,
			"error":    err.Error(),
		})
		return "", errors.Join(ErrInvalidImage, err)
	}

	key := storage.NewObjectKey(reviewImageFolder, "image.jpg")
	url, err := s.host.Upload(ctx, key, storage.CompressedContentType, compressed)
	if err != nil {
		logger.Error("Failed to upload review image", err, map[string]interface{}{
			"key": key,
		})
		return "", err
	}

	logger.Info("Review image uploaded", map[string]interface{}{
		"key":            key,
		"original_bytes": len(data),
		"stored_bytes":   len(compressed),
	})
	return url, nil
}

// PresignReviewImage issues a direct-to-bucket upload URL. The client is
// expected to compress before uploading.
func (s *uploadService) PresignReviewImage(ctx context.Context, callerEmail, filename, contentType string) (*storage.PresignedURLResponse, error) {
	if err := s.gate.RequireAdmin(ctx, callerEmail); err != nil {
		return nil, err
	}
	if err := storage.ValidateContentType(contentType, storage.AllowedImageTypes); err != nil {
		return nil, newFieldError("content_type", err.Error())
	}
	return s.host.PresignUpload(ctx, filename, contentType, reviewImageFolder)
}
