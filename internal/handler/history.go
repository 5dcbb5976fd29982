// 분석 이력 / 처리 상태 조회 핸들러 (읽기 전용)
//
// 상태 변경은 Poller만 수행하고, 이 핸들러는 복사본만 읽음

package handler

import (
	"net/http"
	"slices"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kube-rca/finops-agent/internal/model"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

// HistoryReader - 유사도 저장소 조회 인터페이스 (rag.Store)
type HistoryReader interface {
	Records() []model.AlertRecord
}

// SeenReader - 처리 완료 알림 조회 인터페이스 (service.Poller)
type SeenReader interface {
	SeenIDs() []int64
}

// History 핸들러 구조체 정의
type HistoryHandler struct {
	history HistoryReader
	seen    SeenReader
}

// History 핸들러 객체 생성
func NewHistoryHandler(history HistoryReader, seen SeenReader) *HistoryHandler {
	return &HistoryHandler{
		history: history,
		seen:    seen,
	}
}

// GET /api/v1/history?limit=N
// 최신 레코드부터 최대 limit개 반환 (임베딩 제외)
func (h *HistoryHandler) ListHistory(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(parsed, maxHistoryLimit)
	}

	records := h.history.Records()
	total := len(records)
	slices.Reverse(records)
	if len(records) > limit {
		records = records[:limit]
	}

	c.JSON(http.StatusOK, model.HistoryResponse{
		Status: "success",
		Total:  total,
		Data:   records,
	})
}

// GET /api/v1/alerts/seen
func (h *HistoryHandler) ListSeenAlerts(c *gin.Context) {
	ids := h.seen.SeenIDs()
	c.JSON(http.StatusOK, model.SeenAlertsResponse{
		Status: "success",
		Count:  len(ids),
		IDs:    ids,
	})
}
