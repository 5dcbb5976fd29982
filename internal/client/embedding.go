// Gemini(genai) 텍스트 임베딩 클라이언트
//
// 환경변수:
//   - AI_API_KEY: Gemini API Key
//   - AI_EMBEDDING_MODEL: 임베딩 모델 (기본 text-embedding-004)

package client

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kube-rca/finops-agent/internal/config"
	"github.com/kube-rca/finops-agent/internal/metrics"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const defaultEmbeddingModel = "text-embedding-004"

var ErrEmptyEmbedding = errors.New("empty embedding result")

// EmbeddingClient - 유사도 저장소용 텍스트 임베딩 클라이언트
type EmbeddingClient struct {
	client *genai.Client
	model  string

	// 마지막으로 받은 벡터 차원 (모델 변경 감지용)
	dim atomic.Int64
}

func NewEmbeddingClient(cfg config.AIConfig) (*EmbeddingClient, error) {
	return newEmbeddingClient(cfg, nil)
}

func newEmbeddingClient(cfg config.AIConfig, httpOptions *genai.HTTPOptions) (*EmbeddingClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing AI_API_KEY")
	}
	model := cfg.EmbeddingModel
	if model == "" {
		model = defaultEmbeddingModel
	}

	clientCfg := &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	if httpOptions != nil {
		clientCfg.HTTPOptions = *httpOptions
	}
	client, err := genai.NewClient(context.Background(), clientCfg)
	if err != nil {
		return nil, err
	}
	return &EmbeddingClient{client: client, model: model}, nil
}

// EmbedText - 텍스트 임베딩 (벡터, 사용한 모델명 반환)
func (c *EmbeddingClient) EmbedText(ctx context.Context, text string) ([]float32, string, error) {
	start := time.Now()
	res, err := c.client.Models.EmbedContent(ctx, c.model, genai.Text(text), nil)
	metrics.EmbeddingRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, c.model, fmt.Errorf("failed to embed content: %w", err)
	}
	if res == nil || len(res.Embeddings) == 0 || res.Embeddings[0] == nil || len(res.Embeddings[0].Values) == 0 {
		return nil, c.model, ErrEmptyEmbedding
	}

	values := res.Embeddings[0].Values
	dim := int64(len(values))
	if prev := c.dim.Swap(dim); prev != 0 && prev != dim {
		// 저장소는 차원이 다른 벡터를 거부하므로 원인을 로그로 남김
		log.Warn().
			Str("model", c.model).
			Int64("previous_dim", prev).
			Int64("dim", dim).
			Msg("Embedding dimension changed")
	}
	return values, c.model, nil
}

// Dimension - 마지막으로 받은 임베딩 차원 (아직 호출 전이면 0)
func (c *EmbeddingClient) Dimension() int {
	return int(c.dim.Load())
}
