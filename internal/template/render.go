// Package template provides analysis prompt rendering.
//
// 지원하는 변수 형식:
//
//	{{alert.id}}, {{alert.name}}, {{alert.message}}, {{alert.query}},
//	{{alert.tags}}, {{alert.state}}
//
//	{{context}} - 유사 과거 알림 컨텍스트 블록 (없으면 빈 문자열)
package template

import (
	"strconv"
	"strings"

	"github.com/kube-rca/finops-agent/internal/model"
)

// DefaultPrompt - 분석 요청 기본 프롬프트
const DefaultPrompt = `Analyze this Datadog alert and provide:
1. Root cause analysis
2. Proposed solution

Alert Details:
Name: {{alert.name}}
Message: {{alert.message}}
Query: {{alert.query}}
Tags: {{alert.tags}}
State: {{alert.state}}

{{context}}`

// AlertData - 템플릿 렌더링에 사용할 Alert 데이터
type AlertData struct {
	ID      string
	Name    string
	Message string
	Query   string
	Tags    string
	State   string
}

// AlertDataFromModel - model.AlertInput에서 AlertData 생성
func AlertDataFromModel(alert model.AlertInput) AlertData {
	return AlertData{
		ID:      strconv.FormatInt(alert.ID, 10),
		Name:    alert.Name,
		Message: alert.Message,
		Query:   alert.Query,
		Tags:    strings.Join(alert.Tags, ", "),
		State:   alert.State,
	}
}

// RenderPrompt - 프롬프트 템플릿의 변수를 실제 값으로 치환
//
// alert가 nil이면 alert 변수는 빈 문자열로 치환됩니다.
func RenderPrompt(body string, alert *AlertData, context string) string {
	pairs := make([]string, 0, 14)

	if alert != nil {
		pairs = append(pairs,
			"{{alert.id}}", alert.ID,
			"{{alert.name}}", alert.Name,
			"{{alert.message}}", alert.Message,
			"{{alert.query}}", alert.Query,
			"{{alert.tags}}", alert.Tags,
			"{{alert.state}}", alert.State,
		)
	} else {
		pairs = append(pairs,
			"{{alert.id}}", "",
			"{{alert.name}}", "",
			"{{alert.message}}", "",
			"{{alert.query}}", "",
			"{{alert.tags}}", "",
			"{{alert.state}}", "",
		)
	}
	pairs = append(pairs, "{{context}}", context)

	return strings.NewReplacer(pairs...).Replace(body)
}
