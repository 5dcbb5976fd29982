// Alert 분석 비즈니스 로직 정의
//
// 처리 흐름:
//  1. 유사도 저장소에서 과거 알림 컨텍스트 조회
//  2. 알림 정보 + 컨텍스트로 프롬프트 구성
//  3. 생성 모델 호출 (temperature 0.7, 최대 500 토큰)
//  4. 응답을 (root cause, solution)으로 파싱
//  5. 파싱된 결과를 유사도 저장소에 저장
//
// 어느 단계에서든 실패하면 에러를 로그로 남기고 고정 문구(SentinelResult)를 반환
// 호출자(Poller)는 실패 여부와 상관없이 결과를 그대로 Slack으로 전송

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kube-rca/finops-agent/internal/client"
	"github.com/kube-rca/finops-agent/internal/metrics"
	"github.com/kube-rca/finops-agent/internal/model"
	"github.com/kube-rca/finops-agent/internal/rag"
	tmpl "github.com/kube-rca/finops-agent/internal/template"
	"github.com/rs/zerolog/log"
)

const (
	systemInstruction = "You are a FinOps expert analyzing Datadog alerts. " +
		"Provide clear, concise root cause analysis and actionable solutions. " +
		"Use the provided context from past alerts to inform your analysis when relevant."

	rootCauseMarker = "Root Cause Analysis"
	solutionMarker  = "Proposed Solution"
)

// 모델 응답 JSON 필드 (AnalysisResult의 json 태그와 동일)
var analysisFields = []string{"root_cause", "solution"}

// TextGenerator - 생성 모델 인터페이스 (client.GenAIClient)
type TextGenerator interface {
	Generate(ctx context.Context, systemInstruction, prompt string, opts client.GenerationOptions) (string, error)
}

// ContextStore - 유사도 저장소 인터페이스 (rag.Store)
type ContextStore interface {
	Query(ctx context.Context, alert model.AlertInput, topK int) (string, error)
	Insert(ctx context.Context, alert model.AlertInput, analysis, solution string) error
}

// AnalysisService 구조체 정의
type AnalysisService struct {
	generator      TextGenerator
	store          ContextStore
	promptTemplate string
	options        client.GenerationOptions
}

// AnalysisService 객체 생성
func NewAnalysisService(generator TextGenerator, store ContextStore) *AnalysisService {
	return &AnalysisService{
		generator:      generator,
		store:          store,
		promptTemplate: tmpl.DefaultPrompt,
		options: client.GenerationOptions{
			Temperature:     0.7,
			MaxOutputTokens: 500,
			JSONFields:      analysisFields,
		},
	}
}

// Analyze - 알림 하나에 대한 원인 분석과 해결 방안 생성 (에러를 반환하지 않음)
func (s *AnalysisService) Analyze(ctx context.Context, alert model.AlertInput) model.AnalysisResult {
	result, err := s.analyze(ctx, alert)
	if err != nil {
		log.Error().Err(err).Int64("alert_id", alert.ID).Str("alert_name", alert.Name).Msg("Error in AI analysis")
		metrics.AnalysesTotal.WithLabelValues("error").Inc()
		return model.SentinelResult()
	}
	metrics.AnalysesTotal.WithLabelValues("ok").Inc()
	return result
}

func (s *AnalysisService) analyze(ctx context.Context, alert model.AlertInput) (model.AnalysisResult, error) {
	// 1. 과거 알림 컨텍스트 조회
	contextBlock, err := s.store.Query(ctx, alert, rag.DefaultTopK)
	if err != nil {
		return model.AnalysisResult{}, fmt.Errorf("failed to query similar alerts: %w", err)
	}

	// 2. 프롬프트 구성
	data := tmpl.AlertDataFromModel(alert)
	prompt := tmpl.RenderPrompt(s.promptTemplate, &data, contextBlock)

	// 3. 모델 호출
	text, err := s.generator.Generate(ctx, systemInstruction, prompt, s.options)
	if err != nil {
		return model.AnalysisResult{}, err
	}

	// 4. 응답 파싱
	result, err := ParseAnalysis(text)
	if err != nil {
		return model.AnalysisResult{}, err
	}

	// 5. 저장소에 기록 (analysis 필드에는 파싱된 root cause 저장)
	if err := s.store.Insert(ctx, alert, result.RootCause, result.Solution); err != nil {
		return model.AnalysisResult{}, fmt.Errorf("failed to store analysis: %w", err)
	}

	log.Info().Int64("alert_id", alert.ID).Bool("with_context", contextBlock != "").Msg("Alert analysis completed")
	return result, nil
}

// ErrUnparseableResponse - JSON 형태지만 root_cause를 읽을 수 없는 응답
var ErrUnparseableResponse = errors.New("unparseable model response")

// ParseAnalysis - 모델 응답을 (root cause, solution)으로 분리
//
// JSON({"root_cause","solution"}) 응답을 우선 해석하고 (출력 토큰 한도로 잘린 JSON은
// 완성된 필드만 사용), 아니면 "Proposed Solution" 문자열 기준으로 나누는 방식으로 처리
func ParseAnalysis(text string) (model.AnalysisResult, error) {
	trimmed := stripCodeFence(text)
	if !strings.HasPrefix(trimmed, "{") {
		return parseMarkers(text), nil
	}

	if result, ok := parseStructured(trimmed); ok {
		return result, nil
	}
	// JSON이 아닌데 우연히 '{'로 시작한 경우
	if strings.Contains(text, solutionMarker) {
		return parseMarkers(text), nil
	}
	return model.AnalysisResult{}, ErrUnparseableResponse
}

func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

// parseStructured - 객체의 최상위 문자열 필드를 앞에서부터 읽음
// 잘린 응답이면 마지막으로 완성된 필드까지만 사용
func parseStructured(text string) (model.AnalysisResult, bool) {
	dec := json.NewDecoder(strings.NewReader(text))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return model.AnalysisResult{}, false
	}

	var result model.AnalysisResult
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			break
		}
		key, _ := keyTok.(string)

		var value any
		if err := dec.Decode(&value); err != nil {
			break
		}
		str, _ := value.(string)
		switch key {
		case "root_cause":
			result.RootCause = str
		case "solution":
			result.Solution = str
		}
	}

	result.RootCause = cleanRootCause(result.RootCause)
	result.Solution = strings.TrimSpace(result.Solution)
	if result.RootCause == "" {
		return model.AnalysisResult{}, false
	}
	if result.Solution == "" {
		result.Solution = model.NoSolutionProvided
	}
	return result, true
}

func parseMarkers(text string) model.AnalysisResult {
	parts := strings.SplitN(text, solutionMarker, 2)

	result := model.AnalysisResult{
		RootCause: cleanRootCause(parts[0]),
		Solution:  model.NoSolutionProvided,
	}
	if len(parts) > 1 {
		result.Solution = trimHeading(parts[1])
	}
	return result
}

// "Root Cause Analysis" 머리글 제거 ("Root Cause Analysis: X" 형태 포함)
func cleanRootCause(text string) string {
	return trimHeading(strings.ReplaceAll(text, rootCauseMarker, ""))
}

// 머리글 뒤에 남은 ':' 와 공백 제거
func trimHeading(text string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), ":"))
}
