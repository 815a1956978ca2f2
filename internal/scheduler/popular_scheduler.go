package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/truecar-kr/truecar-backend/pkg/logger"
)

// DefaultPopularSpec 5분마다 인기 리뷰 캐시 갱신
const DefaultPopularSpec = "@every 5m"

// PopularRefresher rebuilds the cached popular-review list.
type PopularRefresher interface {
	RefreshPopular(ctx context.Context) error
}

// PopularScheduler 인기 리뷰 캐시 워머
type PopularScheduler struct {
	cron      *cron.Cron
	refresher PopularRefresher
	spec      string
	timeout   time.Duration
}

// NewPopularScheduler 인기 리뷰 스케줄러 생성. spec이 비어 있으면 DefaultPopularSpec
func NewPopularScheduler(refresher PopularRefresher, spec string) *PopularScheduler {
	if spec == "" {
		spec = DefaultPopularSpec
	}
	return &PopularScheduler{
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		refresher: refresher,
		spec:      spec,
		timeout:   30 * time.Second,
	}
}

// Start 즉시 한 번 갱신한 뒤 주기 실행 시작
func (s *PopularScheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.RunOnce); err != nil {
		logger.Error("Failed to add cron job for popular reviews", err, map[string]interface{}{
			"spec": s.spec,
		})
		return err
	}

	go s.RunOnce()
	s.cron.Start()
	logger.Info("Popular review scheduler started", map[string]interface{}{
		"spec": s.spec,
	})
	return nil
}

// RunOnce 캐시 한 번 갱신
func (s *PopularScheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.refresher.RefreshPopular(ctx); err != nil {
		logger.Error("Failed to refresh popular reviews", err)
		return
	}
	logger.Debug("Popular reviews refreshed", nil)
}

// Stop 스케줄러 중지. 실행 중인 작업이 끝날 때까지 대기
func (s *PopularScheduler) Stop() {
	logger.Info("Stopping popular review scheduler...", nil)
	<-s.cron.Stop().Done()
	logger.Info("Popular review scheduler stopped", nil)
}
