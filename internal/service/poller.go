// Datadog 활성 알림 주기 점검(Polling Loop) 정의
//
// 처리 흐름 (Sweep 1회):
//  1. 활성 알림 목록 조회
//  2. seen-set에 있는 알림은 스킵
//  3. 상세 조회 실패 시 스킵 (seen 표시 안 함 -> 다음 주기에 재시도)
//  4. 분석 -> Slack 전송 -> seen 표시
//
// Slack 전송 실패 시 Sweep을 중단하고 에러 반환 (해당 알림은 다음 주기에 재시도)
// 알림은 한 번에 하나씩 순차 처리 (외부 API rate limit 고려)

package service

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kube-rca/finops-agent/internal/metrics"
	"github.com/kube-rca/finops-agent/internal/model"
	"github.com/rs/zerolog/log"
)

// AlertSource - 모니터링 소스 인터페이스 (client.DatadogClient)
type AlertSource interface {
	ListActiveAlerts(ctx context.Context) []model.AlertInput
	GetAlertDetails(ctx context.Context, id int64) (*model.AlertInput, bool)
}

// Analyzer - 분석 인터페이스 (AnalysisService)
type Analyzer interface {
	Analyze(ctx context.Context, alert model.AlertInput) model.AnalysisResult
}

// Notifier - 알림 전송 인터페이스 (client.SlackClient)
type Notifier interface {
	SendAlert(ctx context.Context, alert model.AlertInput, result model.AnalysisResult) error
}

// Poller 구조체 정의
// seen-set은 Poller만 쓰고, HTTP 핸들러는 읽기만 함
type Poller struct {
	source   AlertSource
	analyzer Analyzer
	notifier Notifier
	interval time.Duration

	mu   sync.RWMutex
	seen map[int64]struct{}
}

// Poller 객체 생성
func NewPoller(source AlertSource, analyzer Analyzer, notifier Notifier, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Poller{
		source:   source,
		analyzer: analyzer,
		notifier: notifier,
		interval: interval,
		seen:     make(map[int64]struct{}),
	}
}

// Run - ctx가 취소될 때까지 Sweep 반복
// 다음 Sweep은 이전 Sweep이 끝난 시점부터 interval 후에 시작
func (p *Poller) Run(ctx context.Context) error {
	log.Info().Dur("interval", p.interval).Msg("Starting alert poller")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Alert poller stopped")
			return nil
		case <-timer.C:
		}

		if err := p.Sweep(ctx); err != nil {
			log.Error().Err(err).Msg("Error in alert checking")
		}
		timer.Reset(p.interval)
	}
}

// Sweep - 활성 알림 1회 점검
func (p *Poller) Sweep(ctx context.Context) (err error) {
	start := time.Now()
	logger := log.With().Str("sweep_id", uuid.NewString()).Logger()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.SweepsTotal.WithLabelValues(status).Inc()
		metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	alerts := p.source.ListActiveAlerts(ctx)
	logger.Info().Int("count", len(alerts)).Msg("Checking active alerts")

	for _, alert := range alerts {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if p.IsSeen(alert.ID) {
			logger.Debug().Int64("alert_id", alert.ID).Msg("Skipping already processed alert")
			continue
		}

		logger.Info().Int64("alert_id", alert.ID).Msg("Processing new alert")

		// 상세 조회 실패 -> seen 표시 없이 스킵
		details, ok := p.source.GetAlertDetails(ctx, alert.ID)
		if !ok || details == nil {
			logger.Warn().Int64("alert_id", alert.ID).Msg("Could not get details for alert")
			continue
		}

		logger.Info().Int64("alert_id", alert.ID).Msg("Analyzing alert")
		result := p.analyzer.Analyze(ctx, *details)

		logger.Info().Int64("alert_id", alert.ID).Msg("Sending alert to Slack")
		if err := p.notifier.SendAlert(ctx, *details, result); err != nil {
			metrics.NotificationsTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("failed to notify alert %d: %w", alert.ID, err)
		}
		metrics.NotificationsTotal.WithLabelValues("ok").Inc()

		p.markSeen(alert.ID)
		metrics.AlertsProcessed.Inc()
		logger.Info().Int64("alert_id", alert.ID).Msg("Completed processing alert")
	}
	return nil
}

// IsSeen - 처리 완료된 알림인지 확인
func (p *Poller) IsSeen(id int64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.seen[id]
	return ok
}

// SeenIDs - 처리 완료된 알림 ID 목록 (오름차순)
func (p *Poller) SeenIDs() []int64 {
	p.mu.RLock()
	ids := make([]int64, 0, len(p.seen))
	for id := range p.seen {
		ids = append(ids, id)
	}
	p.mu.RUnlock()

	slices.Sort(ids)
	return ids
}

func (p *Poller) markSeen(id int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen[id] = struct{}{}
}
