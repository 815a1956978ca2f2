package controller

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/truecar-kr/truecar-backend/internal/app/model"
	"github.com/truecar-kr/truecar-backend/internal/app/service"
	apperrors "github.com/truecar-kr/truecar-backend/internal/errors"
	"github.com/truecar-kr/truecar-backend/internal/middleware"
	"github.com/truecar-kr/truecar-backend/internal/websocket"
)

const (
	defaultPageSize = 12
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type ReviewController struct {
	reviewService service.ReviewService
	viewService   service.ViewService
	hub           *websocket.Hub
	upgrader      gorillaws.Upgrader
}

func NewReviewController(
	reviewService service.ReviewService,
	viewService service.ViewService,
	hub *websocket.Hub,
	allowedOrigins []string,
) *ReviewController {
	return &ReviewController{
		reviewService: reviewService,
		viewService:   viewService,
		hub:           hub,
		upgrader:      websocket.NewUpgrader(allowedOrigins),
	}
}

// ReviewDetailResponse 상세 페이지 응답 (표시용 필드 포함)
type ReviewDetailResponse struct {
	model.Review
	DisplayAuthor string   `json:"display_author"`
	Paragraphs    []string `json:"paragraphs"`
}

func newReviewDetail(r *model.Review) ReviewDetailResponse {
	return ReviewDetailResponse{
		Review:        *r,
		DisplayAuthor: r.DisplayAuthor(),
		Paragraphs:    r.Paragraphs(),
	}
}

// ListReviews 공개 리뷰 목록 (커서 페이지네이션)
// GET /api/v1/reviews?page_size=12&cursor=...
func (ctrl *ReviewController) ListReviews(c *gin.Context) {
	pageSize := defaultPageSize
	if raw := c.Query("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			apperrors.RespondWithValidationError(c, map[string]string{"page_size": "must be a number"})
			return
		}
		pageSize = n
	}

	page, err := ctrl.reviewService.ListActive(c.Request.Context(), pageSize, c.Query("cursor"))
	if err != nil {
		respondServiceError(c, err, "list reviews")
		return
	}

	c.JSON(http.StatusOK, page)
}

// ListPopularReviews 조회수 순 인기 리뷰
// GET /api/v1/reviews/popular?limit=5
func (ctrl *ReviewController) ListPopularReviews(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))

	reviews, err := ctrl.reviewService.ListPopular(c.Request.Context(), limit)
	if err != nil {
		respondServiceError(c, err, "list popular reviews")
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": reviews})
}

// ListReviewsByVehicleType 차종별 리뷰
// GET /api/v1/reviews/vehicle/:type?limit=20
func (ctrl *ReviewController) ListReviewsByVehicleType(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	reviews, err := ctrl.reviewService.ListByVehicleType(c.Request.Context(), c.Param("type"), limit)
	if err != nil {
		respondServiceError(c, err, "list reviews by vehicle type")
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": reviews})
}

// GetReview 리뷰 상세 + 조회수 반영
// GET /api/v1/reviews/:id
func (ctrl *ReviewController) GetReview(c *gin.Context) {
	id := c.Param("id")

	review, err := ctrl.reviewService.GetByID(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "get review")
		return
	}

	if middleware.IsAdminCaller(c) {
		middleware.GetLoggerFromContext(c).Debug("Admin read, view not counted", map[string]interface{}{
			"review_id": id,
		})
		c.JSON(http.StatusOK, newReviewDetail(review))
		return
	}

	// 조회수 실패는 상세 응답에 영향 없음
	outcome := ctrl.viewService.RecordView(c.Request.Context(), id, middleware.GetViewerSession(c))
	if outcome == service.ViewRecorded {
		review.Views++
	}

	c.JSON(http.StatusOK, newReviewDetail(review))
}

// LiveViews 실시간 조회수 구독 (WebSocket)
// GET /api/v1/reviews/:id/live
func (ctrl *ReviewController) LiveViews(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	id := c.Param("id")

	if _, err := ctrl.reviewService.GetByID(c.Request.Context(), id); err != nil {
		respondServiceError(c, err, "get review")
		return
	}

	conn, err := ctrl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("WebSocket upgrade failed", map[string]interface{}{
			"review_id": id,
			"error":     err.Error(),
		})
		return
	}

	websocket.NewClient(ctrl.hub, &websocket.Conn{Conn: conn}, id).Serve()
}

// AdminGetReview 관리자 편집용 조회 (조회수 미반영)
// GET /api/v1/admin/reviews/:id
func (ctrl *ReviewController) AdminGetReview(c *gin.Context) {
	review, err := ctrl.reviewService.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err, "get review")
		return
	}

	c.JSON(http.StatusOK, review)
}

// CreateReview 리뷰 등록
// POST /api/v1/admin/reviews
func (ctrl *ReviewController) CreateReview(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var input service.ReviewInput
	if err := c.ShouldBindJSON(&input); err != nil {
		log.Warn("Invalid create review request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "입력값이 올바르지 않습니다")
		return
	}

	id, err := ctrl.reviewService.Create(c.Request.Context(), callerEmail(c), input)
	if err != nil {
		respondServiceError(c, err, "create review")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// UpdateReview 리뷰 부분 수정
// PUT /api/v1/admin/reviews/:id
func (ctrl *ReviewController) UpdateReview(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var patch service.ReviewPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		log.Warn("Invalid update review request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "입력값이 올바르지 않습니다")
		return
	}

	id := c.Param("id")
	if err := ctrl.reviewService.Update(c.Request.Context(), callerEmail(c), id, patch); err != nil {
		respondServiceError(c, err, "update review")
		return
	}

	review, err := ctrl.reviewService.GetByID(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "get review")
		return
	}
	c.JSON(http.StatusOK, review)
}

// DeleteReview 리뷰 삭제 (소프트 삭제)
// DELETE /api/v1/admin/reviews/:id
func (ctrl *ReviewController) DeleteReview(c *gin.Context) {
	if err := ctrl.reviewService.SoftDelete(c.Request.Context(), callerEmail(c), c.Param("id")); err != nil {
		respondServiceError(c, err, "delete review")
		return
	}

	c.Status(http.StatusNoContent)
}

// GetViewStats 조회수 통계
// GET /api/v1/admin/reviews/stats
func (ctrl *ReviewController) GetViewStats(c *gin.Context) {
	stats, err := ctrl.reviewService.ViewStats(c.Request.Context(), callerEmail(c))
	if err != nil {
		respondServiceError(c, err, "review view stats")
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ExportReviews 전체 리뷰 엑셀 다운로드
// GET /api/v1/admin/reviews/export
func (ctrl *ReviewController) ExportReviews(c *gin.Context) {
	var buf bytes.Buffer
	if err := ctrl.reviewService.ExportXLSX(c.Request.Context(), callerEmail(c), &buf); err != nil {
		respondServiceError(c, err, "export reviews")
		return
	}

	filename := fmt.Sprintf("reviews_%s.xlsx", time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
