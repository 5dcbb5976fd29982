package model

type ErrorResponse struct {
	Error string `json:"error"`
}

type PingResponse struct {
	Message string `json:"message"`
}

type RootResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HistoryResponse - 유사도 저장소 레코드 목록 (임베딩 제외, 최신순)
type HistoryResponse struct {
	Status string        `json:"status"`
	Total  int           `json:"total"`
	Data   []AlertRecord `json:"data"`
}

// SeenAlertsResponse - 처리 완료된 알림 ID 목록
type SeenAlertsResponse struct {
	Status string  `json:"status"`
	Count  int     `json:"count"`
	IDs    []int64 `json:"ids"`
}
