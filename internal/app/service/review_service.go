package service

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/truecar-kr/truecar-backend/internal/app/model"
	"github.com/truecar-kr/truecar-backend/internal/app/repository"
	"github.com/truecar-kr/truecar-backend/internal/metrics"
	"github.com/truecar-kr/truecar-backend/internal/sheet"
	"github.com/truecar-kr/truecar-backend/pkg/logger"
)

const (
	defaultReadTimeout     = 3 * time.Second
	defaultPopularCacheTTL = 5 * time.Minute

	MaxPageSize     = 100
	MaxPopularLimit = 50
	popularCacheKey = "popular"
)

// PopularCache is the JSON cache used for the popular-reviews list.
type PopularCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// ReviewPage is one page of the public list.
type ReviewPage struct {
	Items      []model.Review `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
	HasMore    bool           `json:"has_more"`
}

type ReviewService interface {
	ListActive(ctx context.Context, pageSize int, cursor string) (*ReviewPage, error)
	GetByID(ctx context.Context, id string) (*model.Review, error)
	ListByVehicleType(ctx context.Context, vehicleType string, limit int) ([]model.Review, error)
	ListPopular(ctx context.Context, limit int) ([]model.Review, error)
	RefreshPopular(ctx context.Context) error

	Create(ctx context.Context, callerEmail string, input ReviewInput) (string, error)
	Update(ctx context.Context, callerEmail, id string, patch ReviewPatch) error
	SoftDelete(ctx context.Context, callerEmail, id string) error
	ViewStats(ctx context.Context, callerEmail string) (*model.ReviewViewStats, error)
	ExportXLSX(ctx context.Context, callerEmail string, w io.Writer) error
}

// ReviewServiceConfig holds the optional knobs. Zero values use defaults.
type ReviewServiceConfig struct {
	ReadTimeout     time.Duration
	PopularCacheTTL time.Duration
	Cache           PopularCache
	Now             func() time.Time
}

type reviewService struct {
	reviewRepo  repository.ReviewRepository
	gate        AdminGate
	cache       PopularCache
	readTimeout time.Duration
	popularTTL  time.Duration
	now         func() time.Time
}

func NewReviewService(
	reviewRepo repository.ReviewRepository,
	gate AdminGate,
	cfg ReviewServiceConfig,
) ReviewService {
	s := &reviewService{
		reviewRepo:  reviewRepo,
		gate:        gate,
		cache:       cfg.Cache,
		readTimeout: cfg.ReadTimeout,
		popularTTL:  cfg.PopularCacheTTL,
		now:         cfg.Now,
	}
	if s.readTimeout <= 0 {
		s.readTimeout = defaultReadTimeout
	}
	if s.popularTTL <= 0 {
		s.popularTTL = defaultPopularCacheTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *reviewService) ListActive(ctx context.Context, pageSize int, cursor string) (*ReviewPage, error) {
	if pageSize <= 0 || pageSize > MaxPageSize {
		return nil, newFieldError("page_size", "must be between 1 and 100")
	}

	var after *repository.ReviewCursor
	if cursor != "" {
		c, err := repository.DecodeReviewCursor(cursor)
		if err != nil {
			return nil, newFieldError("cursor", "invalid cursor")
		}
		after = c
	}

	ctx, cancel := context.WithTimeout(ctx, s.readTimeout)
	defer cancel()

	reviews, err := s.reviewRepo.ListActive(ctx, pageSize+1, after)
	if err != nil {
		return nil, storageError("list reviews", err)
	}

	page := &ReviewPage{Items: reviews}
	if len(reviews) > pageSize {
		page.Items = reviews[:pageSize]
		page.HasMore = true
		page.NextCursor = repository.CursorFor(&page.Items[pageSize-1]).Encode()
	}
	if page.Items == nil {
		page.Items = []model.Review{}
	}
	return page, nil
}

// GetByID returns the review regardless of status.
func (s *reviewService) GetByID(ctx context.Context, id string) (*model.Review, error) {
	if id == "" {
		return nil, ErrReviewNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, s.readTimeout)
	defer cancel()

	review, err := s.reviewRepo.FindByID(ctx, id)
	if err != nil {
		return nil, storageError("get review", err)
	}
	return review, nil
}

func (s *reviewService) ListByVehicleType(ctx context.Context, vehicleType string, limit int) ([]model.Review, error) {
	if vehicleType == "" {
		return nil, newFieldError("vehicle_type", "vehicle type is required")
	}
	limit = clampLimit(limit, MaxPageSize)

	ctx, cancel := context.WithTimeout(ctx, s.readTimeout)
	defer cancel()

	reviews, err := s.reviewRepo.ListActiveByVehicleType(ctx, vehicleType, limit)
	if err != nil {
		return nil, storageError("list reviews by vehicle type", err)
	}
	return headOf(reviews, limit), nil
}

// ListPopular serves the top reviews by views. The cache holds the top
// MaxPopularLimit entries; a cache failure falls back to storage.
func (s *reviewService) ListPopular(ctx context.Context, limit int) ([]model.Review, error) {
	limit = clampLimit(limit, MaxPopularLimit)

	if s.cache != nil {
		var cached []model.Review
		hit, err := s.cache.GetJSON(ctx, popularCacheKey, &cached)
		switch {
		case err != nil:
			metrics.CacheRequests.WithLabelValues("error").Inc()
			logger.Warn("Popular reviews cache read failed", map[string]interface{}{
				"error": err.Error(),
			})
		case hit:
			metrics.CacheRequests.WithLabelValues("hit").Inc()
			return headOf(cached, limit), nil
		default:
			metrics.CacheRequests.WithLabelValues("miss").Inc()
		}
	}

	reviews, err := s.loadPopular(ctx)
	if err != nil {
		return nil, err
	}
	return headOf(reviews, limit), nil
}

// RefreshPopular reloads the popular list into the cache.
func (s *reviewService) RefreshPopular(ctx context.Context) error {
	_, err := s.loadPopular(ctx)
	return err
}

func (s *reviewService) loadPopular(ctx context.Context) ([]model.Review, error) {
	readCtx, cancel := context.WithTimeout(ctx, s.readTimeout)
	defer cancel()

	reviews, err := s.reviewRepo.ListPopular(readCtx, MaxPopularLimit)
	if err != nil {
		return nil, storageError("list popular reviews", err)
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, popularCacheKey, reviews, s.popularTTL); err != nil {
			logger.Warn("Popular reviews cache write failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	return reviews, nil
}

func (s *reviewService) invalidatePopular(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, popularCacheKey); err != nil {
		logger.Warn("Popular reviews cache invalidation failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (s *reviewService) Create(ctx context.Context, callerEmail string, input ReviewInput) (string, error) {
	if err := s.gate.RequireAdmin(ctx, callerEmail); err != nil {
		return "", err
	}

	input.normalize()
	if err := toValidationError(input.Validate()); err != nil {
		return "", err
	}

	review := input.toModel()
	review.CreatedAt = s.now()
	if err := s.reviewRepo.Create(ctx, review); err != nil {
		return "", storageError("create review", err)
	}

	logger.Info("Review created", map[string]interface{}{
		"review_id": review.ID,
		"admin":     callerEmail,
	})
	s.invalidatePopular(ctx)
	return review.ID, nil
}

func (s *reviewService) Update(ctx context.Context, callerEmail, id string, patch ReviewPatch) error {
	if err := s.gate.RequireAdmin(ctx, callerEmail); err != nil {
		return err
	}

	if patch.IsEmpty() {
		return newFieldError("body", "no fields to update")
	}
	patch.normalize()
	if err := toValidationError(patch.Validate()); err != nil {
		return err
	}

	updates := patch.updates()
	updates["updated_at"] = s.now().UTC().Truncate(time.Microsecond)

	if err := s.reviewRepo.Update(ctx, id, updates); err != nil {
		return storageError("update review", err)
	}

	logger.Info("Review updated", map[string]interface{}{
		"review_id": id,
		"admin":     callerEmail,
		"fields":    len(updates) - 1,
	})
	s.invalidatePopular(ctx)
	return nil
}

// SoftDelete marks the review inactive. Deleting twice is not an error.
func (s *reviewService) SoftDelete(ctx context.Context, callerEmail, id string) error {
	inactive := model.ReviewStatusInactive
	err := s.Update(ctx, callerEmail, id, ReviewPatch{Status: &inactive})
	if err != nil && !errors.Is(err, ErrPermissionDenied) && !errors.Is(err, ErrReviewNotFound) {
		logger.Error("Failed to soft delete review", err, map[string]interface{}{
			"review_id": id,
		})
	}
	return err
}

func (s *reviewService) ViewStats(ctx context.Context, callerEmail string) (*model.ReviewViewStats, error) {
	if err := s.gate.RequireAdmin(ctx, callerEmail); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.readTimeout)
	defer cancel()

	stats, err := s.reviewRepo.ViewStats(ctx)
	if err != nil {
		return nil, storageError("review view stats", err)
	}
	return stats, nil
}

// ExportXLSX writes every review, including inactive ones, as a workbook.
func (s *reviewService) ExportXLSX(ctx context.Context, callerEmail string, w io.Writer) error {
	if err := s.gate.RequireAdmin(ctx, callerEmail); err != nil {
		return err
	}

	reviews, err := s.reviewRepo.ListAll(ctx)
	if err != nil {
		return storageError("export reviews", err)
	}

	logger.Info("Exporting reviews", map[string]interface{}{
		"count": len(reviews),
		"admin": callerEmail,
	})
	return sheet.WriteReviews(w, reviews)
}

func clampLimit(limit, max int) int {
	if limit <= 0 || limit > max {
		return max
	}
	return limit
}

func headOf(reviews []model.Review, n int) []model.Review {
	if len(reviews) > n {
		return reviews[:n]
	}
	if reviews == nil {
		return []model.Review{}
	}
	return reviews
}
