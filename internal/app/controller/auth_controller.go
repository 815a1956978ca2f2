package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/truecar-kr/truecar-backend/internal/app/service"
	apperrors "github.com/truecar-kr/truecar-backend/internal/errors"
	"github.com/truecar-kr/truecar-backend/internal/middleware"
	"github.com/truecar-kr/truecar-backend/pkg/util"
)

type AuthController struct {
	authService service.AuthService
	gate        service.AdminGate
}

func NewAuthController(authService service.AuthService, gate service.AdminGate) *AuthController {
	return &AuthController{
		authService: authService,
		gate:        gate,
	}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Signup 관리자 페이지 계정 생성
// POST /api/v1/auth/signup
func (ctrl *AuthController) Signup(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req service.SignupInput
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid signup request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "입력 정보가 올바르지 않습니다")
		return
	}

	result, err := ctrl.authService.Signup(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrEmailAlreadyExists) {
			apperrors.Conflict(c, apperrors.AuthEmailAlreadyExists, "이미 사용 중인 이메일입니다")
			return
		}
		respondServiceError(c, err, "signup")
		return
	}

	c.JSON(http.StatusCreated, result)
}

// Login 이메일/비밀번호 로그인
// POST /api/v1/auth/login
func (ctrl *AuthController) Login(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid login request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "입력 정보가 올바르지 않습니다")
		return
	}

	result, err := ctrl.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthInvalidCredentials, "이메일 또는 비밀번호가 올바르지 않습니다")
			return
		}
		respondServiceError(c, err, "login")
		return
	}

	c.JSON(http.StatusOK, result)
}

// RefreshToken 토큰 재발급
// POST /api/v1/auth/refresh
func (ctrl *AuthController) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationRequired, "refresh_token이 필요합니다")
		return
	}

	tokens, err := ctrl.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrExpiredToken):
			apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthTokenExpired, "토큰이 만료되었습니다")
		case errors.Is(err, util.ErrInvalidToken), errors.Is(err, service.ErrAccountNotFound):
			apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthTokenInvalid, "유효하지 않은 토큰입니다")
		default:
			respondServiceError(c, err, "refresh token")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

// GetMe 현재 계정 + 관리자 여부
// GET /api/v1/auth/me
func (ctrl *AuthController) GetMe(c *gin.Context) {
	accountID, exists := middleware.GetAccountID(c)
	if !exists {
		apperrors.Unauthorized(c, "로그인이 필요합니다")
		return
	}

	account, err := ctrl.authService.GetAccount(c.Request.Context(), accountID)
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			apperrors.NotFound(c, apperrors.ResourceNotFound, "계정을 찾을 수 없습니다")
			return
		}
		respondServiceError(c, err, "get account")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account":  account,
		"is_admin": ctrl.gate.IsAdmin(c.Request.Context(), account.Email),
	})
}
