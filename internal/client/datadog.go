// Datadog Monitors API 클라이언트 정의
//
// 환경변수:
//   - DATADOG_API_KEY, DATADOG_APP_KEY: 인증 키
//   - DATADOG_SITE: API 사이트 (기본 us5.datadoghq.com)
//
// 연결/인증 실패는 로그만 남기고 빈 결과를 반환
// (Poller는 다음 주기에 다시 시도)

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV1"
	"github.com/kube-rca/finops-agent/internal/config"
	"github.com/kube-rca/finops-agent/internal/model"
	"github.com/rs/zerolog/log"
)

// monitorsAPI - datadogV1.MonitorsApi 중 사용하는 메서드만 정의 (테스트에서 대체)
type monitorsAPI interface {
	ListMonitors(ctx context.Context, o ...datadogV1.ListMonitorsOptionalParameters) ([]datadogV1.Monitor, *http.Response, error)
	GetMonitor(ctx context.Context, monitorID int64, o ...datadogV1.GetMonitorOptionalParameters) (datadogV1.Monitor, *http.Response, error)
}

// DatadogClient 구조체 정의
type DatadogClient struct {
	monitors monitorsAPI
	apiKey   string
	appKey   string
	site     string
}

// DatadogClient 객체 생성
func NewDatadogClient(cfg config.DatadogConfig) *DatadogClient {
	apiClient := datadog.NewAPIClient(datadog.NewConfiguration())
	site := cfg.Site
	if site == "" {
		site = "us5.datadoghq.com"
	}
	return &DatadogClient{
		monitors: datadogV1.NewMonitorsApi(apiClient),
		apiKey:   cfg.APIKey,
		appKey:   cfg.AppKey,
		site:     site,
	}
}

// 요청 컨텍스트에 인증 키와 사이트 설정
func (c *DatadogClient) authContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, datadog.ContextAPIKeys, map[string]datadog.APIKey{
		"apiKeyAuth": {Key: c.apiKey},
		"appKeyAuth": {Key: c.appKey},
	})
	return context.WithValue(ctx, datadog.ContextServerVariables, map[string]string{
		"site": c.site,
	})
}

// CheckConnection - 기동 시 모니터 목록 조회로 연결 확인
func (c *DatadogClient) CheckConnection(ctx context.Context) error {
	_, resp, err := c.monitors.ListMonitors(c.authContext(ctx))
	if err != nil {
		logAPIError(resp, err, "Failed to connect to Datadog API")
		return fmt.Errorf("datadog connection check failed: %w", err)
	}
	log.Info().Str("site", c.site).Msg("Successfully connected to Datadog API")
	return nil
}

// ListActiveAlerts - OK가 아닌 상태의 모니터 목록 반환
func (c *DatadogClient) ListActiveAlerts(ctx context.Context) []model.AlertInput {
	monitors, resp, err := c.monitors.ListMonitors(c.authContext(ctx))
	if err != nil {
		logAPIError(resp, err, "Error fetching Datadog alerts")
		return []model.AlertInput{}
	}

	active := make([]model.AlertInput, 0, len(monitors))
	for _, m := range monitors {
		if m.GetOverallState() == datadogV1.MONITOROVERALLSTATES_OK {
			continue
		}
		alert := toAlertInput(m)
		log.Info().Int64("alert_id", alert.ID).Str("alert_name", alert.Name).Msg("Found active alert")
		log.Debug().
			Int64("alert_id", alert.ID).
			Str("message", alert.Message).
			Str("query", alert.Query).
			Str("state", alert.State).
			Msg("Active alert details")
		active = append(active, alert)
	}

	log.Info().Int("count", len(active)).Msg("Found active alerts")
	return active
}

// GetAlertDetails - 단일 모니터 상세 조회 (options 포함)
// 조회 실패 시 false 반환
func (c *DatadogClient) GetAlertDetails(ctx context.Context, id int64) (*model.AlertInput, bool) {
	m, resp, err := c.monitors.GetMonitor(c.authContext(ctx), id)
	if err != nil {
		logAPIError(resp, err, "Error fetching alert details")
		return nil, false
	}

	alert := toAlertInput(m)
	if m.HasOptions() {
		alert.Options = optionsToMap(m.GetOptions())
	}
	log.Info().Int64("alert_id", id).Msg("Retrieved detailed information for alert")
	log.Debug().Int64("alert_id", id).Interface("details", alert).Msg("Full alert details")
	return &alert, true
}

func toAlertInput(m datadogV1.Monitor) model.AlertInput {
	return model.AlertInput{
		ID:      m.GetId(),
		Name:    m.GetName(),
		Message: m.GetMessage(),
		Query:   m.GetQuery(),
		Tags:    m.GetTags(),
		State:   string(m.GetOverallState()),
	}
}

// MonitorOptions는 필드가 많아 범용 map으로 변환해서 전달
func optionsToMap(opts datadogV1.MonitorOptions) map[string]any {
	raw, err := json.Marshal(opts)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func logAPIError(resp *http.Response, err error, msg string) {
	log.Error().Err(err).Msg(msg)
	if resp != nil && resp.StatusCode == http.StatusForbidden {
		log.Error().Msg("Authentication failed. Please check your API and App keys.")
	}
}
