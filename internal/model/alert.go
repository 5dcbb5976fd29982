// Datadog 모니터 알림 및 RAG 저장 레코드 구조체 정의
// client, service, rag, handler 레이어에서 공통으로 사용하기 때문에 model 레이어에 별도로 정의

package model

import "time"

// AlertInput - 체크 주기마다 Datadog에서 가져오는 개별 알림 (저장하지 않음)
// ID는 Poller의 seen-set 중복 체크 키로 사용
type AlertInput struct {
	ID      int64    `json:"id"`
	Name    string   `json:"name"`
	Message string   `json:"message"`
	Query   string   `json:"query"`
	Tags    []string `json:"tags"`

	// OK가 아닌 상태 (Alert, Warn, No Data ...)
	State string `json:"state"`

	// 상세 조회(GetAlertDetails) 시에만 채워짐
	Options map[string]any `json:"options,omitempty"`
}

// EmbeddingText - 임베딩 입력 텍스트 (message + " " + query)
// 저장과 조회 모두 같은 규칙을 사용해야 유사도가 의미를 가짐
func (a AlertInput) EmbeddingText() string {
	return a.Message + " " + a.Query
}

// AlertRecord - 유사도 검색 저장소의 단위 레코드
// Timestamp, Embedding은 저장 시점에 한 번만 설정되고 이후 변경되지 않음
type AlertRecord struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	AlertName    string    `json:"alert_name"`
	AlertMessage string    `json:"alert_message"`
	AlertQuery   string    `json:"alert_query"`
	AlertTags    []string  `json:"alert_tags"`
	Analysis     string    `json:"analysis"`
	Solution     string    `json:"solution"`
	Embedding    []float32 `json:"-"`
}

// ScoredRecord - 유사도 점수가 붙은 검색 결과
type ScoredRecord struct {
	Record AlertRecord
	Score  float64
}
