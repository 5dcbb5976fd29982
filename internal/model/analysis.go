package model

// 분석 실패 시 반환되는 고정 문구
const (
	AnalysisErrorRootCause = "Error in analysis"
	AnalysisErrorSolution  = "Unable to provide solution"
	NoSolutionProvided     = "No solution provided"
)

// AnalysisResult - 모델 응답을 파싱한 결과
type AnalysisResult struct {
	RootCause string `json:"root_cause"`
	Solution  string `json:"solution"`
}

// SentinelResult - 분석 실패 시 Slack에 그대로 전달되는 결과
func SentinelResult() AnalysisResult {
	return AnalysisResult{
		RootCause: AnalysisErrorRootCause,
		Solution:  AnalysisErrorSolution,
	}
}
