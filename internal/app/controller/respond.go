package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/truecar-kr/truecar-backend/internal/app/service"
	apperrors "github.com/truecar-kr/truecar-backend/internal/errors"
	"github.com/truecar-kr/truecar-backend/internal/middleware"
)

// respondServiceError maps review/admin service errors onto HTTP responses.
func respondServiceError(c *gin.Context, err error, operation string) {
	log := middleware.GetLoggerFromContext(c)

	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		apperrors.RespondWithValidationError(c, verr.Fields)
	case errors.Is(err, service.ErrReviewNotFound):
		apperrors.NotFound(c, apperrors.ReviewNotFound, "리뷰를 찾을 수 없습니다")
	case errors.Is(err, service.ErrPermissionDenied):
		apperrors.AdminOnly(c)
	case errors.Is(err, service.ErrStorageUnavailable):
		log.Error("Storage unavailable", err, map[string]interface{}{
			"operation": operation,
		})
		apperrors.ServiceUnavailable(c, "")
	default:
		log.Error("Unexpected error", err, map[string]interface{}{
			"operation": operation,
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, operation)
	}
}

// callerEmail is the authenticated email, or "" for guests.
func callerEmail(c *gin.Context) string {
	email, _ := middleware.GetUserEmail(c)
	return email
}
