package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/truecar-kr/truecar-backend/internal/app/model"
	"github.com/truecar-kr/truecar-backend/internal/app/repository"
	"github.com/truecar-kr/truecar-backend/internal/db"
	"gorm.io/gorm"
)

const (
	adminEmail    = "admin@truecar.kr"
	customerEmail = "customer@example.com"
)

var baseTime = time.Date(2025, 5, 3, 14, 8, 45, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock {
	return &testClock{now: t}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	db         *gorm.DB
	reviewRepo repository.ReviewRepository
	adminRepo  repository.AdminUserRepository
	gate       AdminGate
	clock      *testClock
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	adminRepo := repository.NewAdminUserRepository(testDB)
	gate := NewAdminGate(adminRepo)
	require.NoError(t, gate.Grant(context.Background(), adminEmail))

	return &testEnv{
		db:         testDB,
		reviewRepo: repository.NewReviewRepository(testDB),
		adminRepo:  adminRepo,
		gate:       gate,
		clock:      newTestClock(baseTime),
	}
}

func (e *testEnv) reviewService(cache PopularCache) ReviewService {
	return NewReviewService(e.reviewRepo, e.gate, ReviewServiceConfig{
		Cache: cache,
		Now:   e.clock.Now,
	})
}

func (e *testEnv) createReview(t *testing.T, title string, at time.Time) *model.Review {
	t.Helper()
	review := &model.Review{Title: title, Content: "본문", CreatedAt: at}
	require.NoError(t, e.reviewRepo.Create(context.Background(), review))
	return review
}

func (e *testEnv) views(t *testing.T, id string) int64 {
	t.Helper()
	review, err := e.reviewRepo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return review.Views
}

// failingAdminRepo simulates an unreachable admin table.
type failingAdminRepo struct{}

var errAdminStoreDown = errors.New("admin store down")

func (failingAdminRepo) ExistsByEmail(context.Context, string) (bool, error) {
	return false, errAdminStoreDown
}

func (failingAdminRepo) FindByEmail(context.Context, string) (*model.AdminUser, error) {
	return nil, errAdminStoreDown
}

func (failingAdminRepo) Create(context.Context, *model.AdminUser) error {
	return errAdminStoreDown
}

// memoryCache is a PopularCache backed by a map.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	sets    int
	failGet bool
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (c *memoryCache) GetJSON(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return false, errors.New("cache down")
	}
	raw, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *memoryCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = raw
	c.sets++
	return nil
}

func (c *memoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

// failingMarkers fails every claim and release.
type failingMarkers struct{}

func (failingMarkers) TryMark(context.Context, string, string, time.Time, time.Duration) (bool, error) {
	return false, errors.New("marker store down")
}

func (failingMarkers) Release(context.Context, string, string) error {
	return errors.New("marker store down")
}

// slowViewRepo widens the window between the marker claim and the increment.
type slowViewRepo struct {
	repository.ReviewRepository
	delay time.Duration
	fail  bool
}

func (r *slowViewRepo) IncrementViews(ctx context.Context, id string, viewedAt time.Time) error {
	time.Sleep(r.delay)
	if r.fail {
		return errors.New("increment failed")
	}
	return r.ReviewRepository.IncrementViews(ctx, id, viewedAt)
}

type recordingPublisher struct {
	mu  sync.Mutex
	ids []string
}

func (p *recordingPublisher) PublishView(reviewID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, reviewID)
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.ids...)
}
