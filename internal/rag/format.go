package rag

import (
	"fmt"
	"strings"

	"github.com/kube-rca/finops-agent/internal/model"
)

const ContextHeader = "Relevant past alerts and solutions:"

// FormatContext - 검색 결과를 프롬프트용 텍스트 블록으로 변환
//
// 헤더 다음에 항목별로 Alert / Message / Analysis / Solution 4줄을 빈 줄로 구분해서 출력.
// maxChars > 0이면 블록이 그 길이를 넘게 되는 항목부터 통째로 제외 (항목 텍스트는 자르지 않음)
func FormatContext(entries []model.ScoredRecord, maxChars int) string {
	var b strings.Builder
	b.WriteString(ContextHeader)
	b.WriteString("\n\n")

	for _, entry := range entries {
		block := formatEntry(entry.Record)
		if maxChars > 0 && b.Len()+len(block) > maxChars {
			break
		}
		b.WriteString(block)
	}
	return b.String()
}

func formatEntry(r model.AlertRecord) string {
	return fmt.Sprintf("Alert: %s\nMessage: %s\nAnalysis: %s\nSolution: %s\n\n",
		r.AlertName, r.AlertMessage, r.Analysis, r.Solution)
}
