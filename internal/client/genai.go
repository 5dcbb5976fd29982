// Gemini(genai) 텍스트 생성 클라이언트
//
// 환경변수:
//   - AI_API_KEY: Gemini API Key
//   - AI_MODEL: 생성 모델 (기본 gemini-2.0-flash)

package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kube-rca/finops-agent/internal/config"
	"github.com/kube-rca/finops-agent/internal/metrics"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

var ErrEmptyResponse = errors.New("empty model response")

// GenerationOptions - 샘플링 설정
type GenerationOptions struct {
	Temperature     float32
	MaxOutputTokens int32

	// 값이 있으면 JSON 응답을 요청하고 해당 필드(string, 필수)로 스키마 구성
	JSONFields []string
}

type GenAIClient struct {
	client *genai.Client
	model  string
}

func NewGenAIClient(cfg config.AIConfig) (*GenAIClient, error) {
	return newGenAIClient(cfg, nil)
}

func newGenAIClient(cfg config.AIConfig, httpOptions *genai.HTTPOptions) (*GenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing AI_API_KEY")
	}
	clientCfg := &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	if httpOptions != nil {
		clientCfg.HTTPOptions = *httpOptions
	}
	client, err := genai.NewClient(context.Background(), clientCfg)
	if err != nil {
		return nil, err
	}
	return &GenAIClient{client: client, model: cfg.Model}, nil
}

// Model - 사용 중인 생성 모델 이름
func (c *GenAIClient) Model() string {
	return c.model
}

// Generate - 시스템 지시문 + 사용자 프롬프트로 단일 텍스트 응답 생성
func (c *GenAIClient) Generate(ctx context.Context, systemInstruction, prompt string, opts GenerationOptions) (string, error) {
	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		Temperature:       genai.Ptr(opts.Temperature),
		MaxOutputTokens:   opts.MaxOutputTokens,
	}
	if len(opts.JSONFields) > 0 {
		genCfg.ResponseMIMEType = "application/json"
		genCfg.ResponseSchema = objectSchema(opts.JSONFields)
	}

	start := time.Now()
	res, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), genCfg)
	metrics.LLMRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if res == nil {
		return "", ErrEmptyResponse
	}

	text := res.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}

	// 토큰 한도에서 잘린 응답은 그대로 반환 (파싱 단계에서 완성된 필드만 사용)
	if len(res.Candidates) > 0 && res.Candidates[0].FinishReason == genai.FinishReasonMaxTokens {
		metrics.LLMTruncatedResponses.Inc()
		log.Warn().
			Str("model", c.model).
			Int32("max_output_tokens", opts.MaxOutputTokens).
			Msg("Model response truncated at output token limit")
	}
	return text, nil
}

func objectSchema(fields []string) *genai.Schema {
	props := make(map[string]*genai.Schema, len(fields))
	for _, f := range fields {
		props[f] = &genai.Schema{Type: genai.TypeString}
	}
	return &genai.Schema{
		Type:             genai.TypeObject,
		Properties:       props,
		Required:         fields,
		PropertyOrdering: fields,
	}
}
