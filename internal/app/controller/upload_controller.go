package controller

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/truecar-kr/truecar-backend/internal/app/service"
	apperrors "github.com/truecar-kr/truecar-backend/internal/errors"
	"github.com/truecar-kr/truecar-backend/internal/middleware"
	"github.com/truecar-kr/truecar-backend/internal/storage"
)

type UploadController struct {
	uploadService service.UploadService
	maxBytes      int64
}

func NewUploadController(uploadService service.UploadService, maxBytes int64) *UploadController {
	if maxBytes <= 0 {
		maxBytes = storage.DefaultMaxImageBytes
	}
	return &UploadController{
		uploadService: uploadService,
		maxBytes:      maxBytes,
	}
}

type GeneratePresignedURLRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

// UploadReviewImage 리뷰 사진 업로드 (서버에서 압축 후 저장)
// POST /api/v1/admin/uploads/image (multipart, field "file")
func (ctrl *UploadController) UploadReviewImage(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		apperrors.BadRequest(c, apperrors.ValidationRequired, "업로드할 파일이 필요합니다")
		return
	}
	if fileHeader.Size > ctrl.maxBytes {
		apperrors.RespondWithError(c, http.StatusRequestEntityTooLarge, apperrors.UploadFileTooLarge, "파일 크기가 너무 큽니다")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		log.Error("Failed to open uploaded file", err, map[string]interface{}{
			"filename": fileHeader.Filename,
		})
		apperrors.RespondWithError(c, http.StatusBadRequest, apperrors.UploadFailed, "파일을 읽을 수 없습니다")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, ctrl.maxBytes+1))
	if err != nil {
		apperrors.RespondWithError(c, http.StatusBadRequest, apperrors.UploadFailed, "파일을 읽을 수 없습니다")
		return
	}

	url, err := ctrl.uploadService.UploadReviewImage(c.Request.Context(), callerEmail(c), fileHeader.Filename, data)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrImageTooLarge):
			apperrors.RespondWithError(c, http.StatusRequestEntityTooLarge, apperrors.UploadFileTooLarge, "파일 크기가 너무 큽니다")
		case errors.Is(err, service.ErrInvalidImage):
			apperrors.BadRequest(c, apperrors.UploadInvalidFileType, "JPEG, PNG, GIF 이미지만 업로드할 수 있습니다")
		case errors.Is(err, service.ErrPermissionDenied):
			apperrors.AdminOnly(c)
		default:
			log.Error("Review image upload failed", err, map[string]interface{}{
				"filename": fileHeader.Filename,
			})
			apperrors.RespondWithError(c, http.StatusBadGateway, apperrors.UploadFailed, "이미지 업로드에 실패했습니다")
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"url": url})
}

// GeneratePresignedURL S3 직접 업로드용 presigned URL
// POST /api/v1/admin/uploads/presigned-url
func (ctrl *UploadController) GeneratePresignedURL(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req GeneratePresignedURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid presigned URL request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "입력값이 올바르지 않습니다")
		return
	}

	response, err := ctrl.uploadService.PresignReviewImage(c.Request.Context(), callerEmail(c), req.Filename, req.ContentType)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) || errors.Is(err, service.ErrPermissionDenied) {
			respondServiceError(c, err, "presign upload")
			return
		}
		log.Error("Failed to generate presigned URL", err, map[string]interface{}{
			"filename":     req.Filename,
			"content_type": req.ContentType,
		})
		apperrors.RespondWithError(c, http.StatusBadGateway, apperrors.UploadFailed, "presigned URL 생성에 실패했습니다")
		return
	}

	c.JSON(http.StatusOK, response)
}
