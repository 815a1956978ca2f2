package service

import (
	"context"
	"sync"
	"time"

	"github.com/truecar-kr/truecar-backend/internal/app/repository"
	"github.com/truecar-kr/truecar-backend/internal/metrics"
	"github.com/truecar-kr/truecar-backend/pkg/logger"
)

const (
	DefaultDedupWindow      = 5 * time.Minute
	defaultIncrementTimeout = 2 * time.Second
)

// ViewOutcome reports what RecordView did. It is informational only.
type ViewOutcome string

const (
	ViewRecorded ViewOutcome = "recorded"
	ViewSkipped  ViewOutcome = "skipped"
	ViewFailed   ViewOutcome = "failed"
)

// ViewMarkerStore remembers the last counted view per (session, review).
// TryMark checks and claims the marker in one step; it reports false when a
// live marker already exists. Release drops a claim whose increment failed.
type ViewMarkerStore interface {
	TryMark(ctx context.Context, session, reviewID string, at time.Time, window time.Duration) (bool, error)
	Release(ctx context.Context, session, reviewID string) error
}

// ViewPublisher is notified after each recorded view.
type ViewPublisher interface {
	PublishView(reviewID string)
}

// ViewService applies the increment-on-read policy for review detail pages.
type ViewService interface {
	// RecordView never fails the caller; the outcome is for logging and tests.
	RecordView(ctx context.Context, reviewID, session string) ViewOutcome
}

type ViewServiceConfig struct {
	DedupWindow      time.Duration
	IncrementTimeout time.Duration
	Markers          ViewMarkerStore
	Publisher        ViewPublisher
	Now              func() time.Time
}

type viewService struct {
	reviewRepo       repository.ReviewRepository
	markers          ViewMarkerStore
	publisher        ViewPublisher
	window           time.Duration
	incrementTimeout time.Duration
	now              func() time.Time
}

func NewViewService(reviewRepo repository.ReviewRepository, cfg ViewServiceConfig) ViewService {
	s := &viewService{
		reviewRepo:       reviewRepo,
		markers:          cfg.Markers,
		publisher:        cfg.Publisher,
		window:           cfg.DedupWindow,
		incrementTimeout: cfg.IncrementTimeout,
		now:              cfg.Now,
	}
	if s.window <= 0 {
		s.window = DefaultDedupWindow
	}
	if s.incrementTimeout <= 0 {
		s.incrementTimeout = defaultIncrementTimeout
	}
	if s.markers == nil {
		s.markers = NewMemoryViewMarkers()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *viewService) RecordView(ctx context.Context, reviewID, session string) ViewOutcome {
	// 요청이 끊겨도 카운트는 끝까지 반영
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.incrementTimeout)
	defer cancel()

	now := s.now()
	fields := map[string]interface{}{
		"review_id": reviewID,
	}

	// 세션 토큰이 없으면 중복 제거 없이 매번 카운트
	claimed := false
	if session != "" {
		ok, err := s.markers.TryMark(ctx, session, reviewID, now, s.window)
		switch {
		case err != nil:
			logger.Warn("View marker claim failed, counting view", map[string]interface{}{
				"review_id": reviewID,
				"error":     err.Error(),
			})
		case !ok:
			metrics.ReviewViews.WithLabelValues(string(ViewSkipped)).Inc()
			return ViewSkipped
		default:
			claimed = true
		}
	}

	if err := s.reviewRepo.IncrementViews(ctx, reviewID, now); err != nil {
		// 다음 조회가 다시 카운트될 수 있도록 마커 반납
		if claimed {
			if relErr := s.markers.Release(ctx, session, reviewID); relErr != nil {
				logger.Warn("Failed to release view marker", map[string]interface{}{
					"review_id": reviewID,
					"error":     relErr.Error(),
				})
			}
		}
		metrics.ReviewViews.WithLabelValues(string(ViewFailed)).Inc()
		logger.Error("Failed to increment review views", err, fields)
		return ViewFailed
	}

	if s.publisher != nil {
		s.publisher.PublishView(reviewID)
	}

	metrics.ReviewViews.WithLabelValues(string(ViewRecorded)).Inc()
	logger.Debug("Review view recorded", fields)
	return ViewRecorded
}

const memoryMarkerSweepEvery = 1024

// MemoryViewMarkers keeps markers in process. Used when Redis is off and in
// tests; markers do not survive restarts or span instances.
type MemoryViewMarkers struct {
	mu      sync.Mutex
	entries map[string]memoryMarker
	writes  int
}

type memoryMarker struct {
	expires time.Time
}

func NewMemoryViewMarkers() *MemoryViewMarkers {
	return &MemoryViewMarkers{entries: make(map[string]memoryMarker)}
}

func memoryMarkerKey(session, reviewID string) string {
	return session + "\x00" + reviewID
}

func (m *MemoryViewMarkers) TryMark(_ context.Context, session, reviewID string, at time.Time, window time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memoryMarkerKey(session, reviewID)
	if e, ok := m.entries[key]; ok && at.Before(e.expires) {
		return false, nil
	}
	m.entries[key] = memoryMarker{expires: at.Add(window)}

	m.writes++
	if m.writes%memoryMarkerSweepEvery == 0 {
		for k, e := range m.entries {
			if !e.expires.After(at) {
				delete(m.entries, k)
			}
		}
	}
	return true, nil
}

func (m *MemoryViewMarkers) Release(_ context.Context, session, reviewID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, memoryMarkerKey(session, reviewID))
	return nil
}

// Len returns the number of stored markers.
func (m *MemoryViewMarkers) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
