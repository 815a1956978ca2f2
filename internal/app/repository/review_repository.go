package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/truecar-kr/truecar-backend/internal/app/model"
	"github.com/truecar-kr/truecar-backend/pkg/logger"
	"gorm.io/gorm"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// ReviewCursor points just past the last item of a page. Ordering is
// (created_at DESC, id DESC), so the pair is unique and stable under inserts.
type ReviewCursor struct {
	CreatedAt time.Time `json:"t"`
	ID        string    `json:"id"`
}

func CursorFor(r *model.Review) *ReviewCursor {
	return &ReviewCursor{CreatedAt: r.CreatedAt, ID: r.ID}
}

// Encode returns the opaque URL-safe form handed to clients.
func (c *ReviewCursor) Encode() string {
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func DecodeReviewCursor(s string) (*ReviewCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	var c ReviewCursor
	if err := json.Unmarshal(raw, &c); err != nil || c.ID == "" || c.CreatedAt.IsZero() {
		return nil, ErrInvalidCursor
	}
	return &c, nil
}

type ReviewRepository interface {
	Create(ctx context.Context, review *model.Review) error
	CreateBatch(ctx context.Context, reviews []model.Review) error
	FindByID(ctx context.Context, id string) (*model.Review, error)
	ListActive(ctx context.Context, limit int, after *ReviewCursor) ([]model.Review, error)
	ListActiveByVehicleType(ctx context.Context, vehicleType string, limit int) ([]model.Review, error)
	ListPopular(ctx context.Context, limit int) ([]model.Review, error)
	ListAll(ctx context.Context) ([]model.Review, error)
	Update(ctx context.Context, id string, updates map[string]interface{}) error
	IncrementViews(ctx context.Context, id string, viewedAt time.Time) error
	ViewStats(ctx context.Context) (*model.ReviewViewStats, error)
}

type reviewRepository struct {
	db *gorm.DB
}

func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

// Create assigns the id and the initial lifecycle fields. Caller-supplied
// id, status and views are ignored.
func (r *reviewRepository) Create(ctx context.Context, review *model.Review) error {
	prepareNewReview(review, time.Now())

	if err := r.db.WithContext(ctx).Create(review).Error; err != nil {
		logger.Error("Failed to create review in database", err, map[string]interface{}{
			"title": review.Title,
		})
		return err
	}

	logger.Debug("Review created in database", map[string]interface{}{
		"review_id": review.ID,
	})
	return nil
}

// CreateBatch inserts imported reviews. Imported rows keep their views and
// status; only missing ids and timestamps are filled in.
func (r *reviewRepository) CreateBatch(ctx context.Context, reviews []model.Review) error {
	now := time.Now().UTC().Truncate(time.Microsecond)
	for i := range reviews {
		if reviews[i].ID == "" {
			reviews[i].ID = uuid.NewString()
		}
		if reviews[i].CreatedAt.IsZero() {
			reviews[i].CreatedAt = now
		}
		if reviews[i].UpdatedAt.IsZero() {
			reviews[i].UpdatedAt = reviews[i].CreatedAt
		}
		if !reviews[i].Status.Valid() {
			reviews[i].Status = model.ReviewStatusActive
		}
		if reviews[i].Views < 0 {
			reviews[i].Views = 0
		}
	}
	return r.db.WithContext(ctx).CreateInBatches(reviews, 500).Error
}

func prepareNewReview(review *model.Review, now time.Time) {
	review.ID = uuid.NewString()
	review.Status = model.ReviewStatusActive
	review.Views = 0
	review.LastViewedAt = nil
	if review.CreatedAt.IsZero() {
		review.CreatedAt = now
	}
	review.CreatedAt = review.CreatedAt.UTC().Truncate(time.Microsecond)
	review.UpdatedAt = review.CreatedAt
}

func (r *reviewRepository) FindByID(ctx context.Context, id string) (*model.Review, error) {
	var review model.Review
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&review).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("Failed to find review by ID in database", err, map[string]interface{}{
				"review_id": id,
			})
		}
		return nil, err
	}
	return &review, nil
}

func (r *reviewRepository) ListActive(ctx context.Context, limit int, after *ReviewCursor) ([]model.Review, error) {
	query := r.db.WithContext(ctx).
		Model(&model.Review{}).
		Where("status = ?", model.ReviewStatusActive)

	if after != nil {
		query = query.Where(
			"created_at < ? OR (created_at = ? AND id < ?)",
			after.CreatedAt, after.CreatedAt, after.ID,
		)
	}

	var reviews []model.Review
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&reviews).Error
	if err != nil {
		logger.Error("Failed to list active reviews", err, map[string]interface{}{
			"limit": limit,
		})
		return nil, err
	}
	return reviews, nil
}

func (r *reviewRepository) ListActiveByVehicleType(ctx context.Context, vehicleType string, limit int) ([]model.Review, error) {
	var reviews []model.Review
	err := r.db.WithContext(ctx).
		Where("status = ? AND order_vehicle_type = ?", model.ReviewStatusActive, vehicleType).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&reviews).Error
	return reviews, err
}

func (r *reviewRepository) ListPopular(ctx context.Context, limit int) ([]model.Review, error) {
	var reviews []model.Review
	err := r.db.WithContext(ctx).
		Where("status = ?", model.ReviewStatusActive).
		Order("views DESC").
		Order("created_at DESC").
		Limit(limit).
		Find(&reviews).Error
	return reviews, err
}

// ListAll returns every review regardless of status, newest first.
func (r *reviewRepository) ListAll(ctx context.Context) ([]model.Review, error) {
	var reviews []model.Review
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Find(&reviews).Error
	return reviews, err
}

// Update applies a partial update in a single statement and returns
// gorm.ErrRecordNotFound when no row has the id.
func (r *reviewRepository) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	for _, immutable := range []string{"id", "created_at", "views"} {
		if _, ok := updates[immutable]; ok {
			return fmt.Errorf("column %s cannot be updated", immutable)
		}
	}

	result := r.db.WithContext(ctx).
		Model(&model.Review{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		logger.Error("Failed to update review in database", result.Error, map[string]interface{}{
			"review_id": id,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IncrementViews bumps the counter server-side (views = views + 1) so
// concurrent viewers never lose updates.
func (r *reviewRepository) IncrementViews(ctx context.Context, id string, viewedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&model.Review{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"views":          gorm.Expr("views + ?", 1),
			"last_viewed_at": viewedAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *reviewRepository) ViewStats(ctx context.Context) (*model.ReviewViewStats, error) {
	var row struct {
		ReviewCount int64
		TotalViews  int64
		MaxViews    int64
		MinViews    int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.Review{}).
		Select("COUNT(*) AS review_count, COALESCE(SUM(views), 0) AS total_views, COALESCE(MAX(views), 0) AS max_views, COALESCE(MIN(views), 0) AS min_views").
		Where("status = ?", model.ReviewStatusActive).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	stats := &model.ReviewViewStats{
		TotalViews:  row.TotalViews,
		ReviewCount: row.ReviewCount,
		MaxViews:    row.MaxViews,
		MinViews:    row.MinViews,
	}
	if row.ReviewCount > 0 {
		stats.AvgViews = int64(math.Round(float64(row.TotalViews) / float64(row.ReviewCount)))
	}
	return stats, nil
}
