// 과거 알림 분석 결과를 메모리에 보관하고 코사인 유사도로 검색하는 저장소
//
// 동작 규칙:
//   - 최대 capacity(기본 1000)개 보관, 초과 시 가장 오래된 레코드부터 제거 (FIFO)
//   - 임베딩 입력은 message + " " + query
//   - 검색 결과는 유사도 내림차순, 동점이면 저장 순서 유지
//   - 재시작 시 모두 사라짐 (영속 저장 없음)

package rag

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kube-rca/finops-agent/internal/metrics"
	"github.com/kube-rca/finops-agent/internal/model"
)

const (
	DefaultCapacity = 1000
	DefaultTopK     = 3

	// 이 값보다 큰 유사도만 컨텍스트에 포함
	SimilarityThreshold = 0.7
)

var (
	ErrEmptyEmbedding    = errors.New("empty embedding")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, string, error)
}

type StoreConfig struct {
	Capacity int

	// 컨텍스트 블록 최대 길이 (0이면 제한 없음)
	MaxContextChars int
}

// Store - 유사도 검색 저장소
// 쓰기는 분석 흐름 하나에서만 발생하고, HTTP 조회는 읽기 전용
type Store struct {
	embedder Embedder
	cfg      StoreConfig
	now      func() time.Time

	mu      sync.RWMutex
	records []model.AlertRecord
	dim     int
}

func NewStore(embedder Embedder, cfg StoreConfig) *Store {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	return &Store{
		embedder: embedder,
		cfg:      cfg,
		now:      time.Now,
		records:  make([]model.AlertRecord, 0, 64),
	}
}

// Insert - 알림과 분석 결과를 레코드로 저장
// 임베딩 실패는 호출자에게 그대로 전달
func (s *Store) Insert(ctx context.Context, alert model.AlertInput, analysis, solution string) error {
	vector, err := s.embed(ctx, alert)
	if err != nil {
		return err
	}

	record := model.AlertRecord{
		ID:           uuid.NewString(),
		Timestamp:    s.now(),
		AlertName:    alert.Name,
		AlertMessage: alert.Message,
		AlertQuery:   alert.Query,
		AlertTags:    append([]string(nil), alert.Tags...),
		Analysis:     analysis,
		Solution:     solution,
		Embedding:    vector,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dim != 0 && len(vector) != s.dim {
		return fmt.Errorf("%w: got %d, store holds %d", ErrDimensionMismatch, len(vector), s.dim)
	}
	s.dim = len(vector)

	s.records = append(s.records, record)
	if over := len(s.records) - s.cfg.Capacity; over > 0 {
		copy(s.records, s.records[over:])
		clear(s.records[s.cfg.Capacity:])
		s.records = s.records[:s.cfg.Capacity]
	}
	metrics.RAGRecords.Set(float64(len(s.records)))
	return nil
}

// Search - 유사도 상위 topK 레코드 반환 (임계값 필터링 없음)
// 저장소가 비어 있으면 임베딩 호출 없이 nil 반환
func (s *Store) Search(ctx context.Context, alert model.AlertInput, topK int) ([]model.ScoredRecord, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	s.mu.RLock()
	snapshot := make([]model.AlertRecord, len(s.records))
	copy(snapshot, s.records)
	s.mu.RUnlock()

	if len(snapshot) == 0 {
		return nil, nil
	}

	query, err := s.embed(ctx, alert)
	if err != nil {
		return nil, err
	}

	scored := make([]model.ScoredRecord, 0, len(snapshot))
	for _, record := range snapshot {
		if len(record.Embedding) != len(query) {
			return nil, fmt.Errorf("%w: query %d, record %d", ErrDimensionMismatch, len(query), len(record.Embedding))
		}
		scored = append(scored, model.ScoredRecord{
			Record: record,
			Score:  CosineSimilarity(query, record.Embedding),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// Query - 프롬프트에 주입할 컨텍스트 블록 생성
//
//   - 저장소가 비어 있으면 빈 문자열
//   - 상위 topK 중 유사도가 SimilarityThreshold 초과인 항목만 포함
//   - 통과한 항목이 없으면 헤더만 있는 블록
func (s *Store) Query(ctx context.Context, alert model.AlertInput, topK int) (string, error) {
	results, err := s.Search(ctx, alert, topK)
	if err != nil {
		return "", err
	}
	if results == nil {
		return "", nil
	}

	kept := make([]model.ScoredRecord, 0, len(results))
	for _, r := range results {
		if r.Score > SimilarityThreshold {
			kept = append(kept, r)
		}
	}
	return FormatContext(kept, s.cfg.MaxContextChars), nil
}

// Len - 현재 보관 중인 레코드 수
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Records - 저장 순서(오래된 것부터)대로 복사본 반환
func (s *Store) Records() []model.AlertRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.AlertRecord, len(s.records))
	copy(out, s.records)
	return out
}

func (s *Store) embed(ctx context.Context, alert model.AlertInput) ([]float32, error) {
	vector, _, err := s.embedder.EmbedText(ctx, alert.EmbeddingText())
	if err != nil {
		return nil, fmt.Errorf("failed to embed alert text: %w", err)
	}
	if len(vector) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return vector, nil
}

// CosineSimilarity - dot(a,b) / (||a|| * ||b||)
//
// 영벡터는 수학적으로 정의되지 않지만 임베딩 모델이 실제로 반환하지 않으므로
// 0을 반환해 정렬이 깨지지 않게만 처리
func CosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
