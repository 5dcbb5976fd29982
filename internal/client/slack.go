// 외부 Slack API와 통신하는 클라이언트 정의
//
// 환경변수:
//   - SLACK_BOT_TOKEN: Slack Bot Token (xoxb-...)
//   - SLACK_APP_TOKEN: Socket Mode용 App-Level Token (xapp-...)
//   - SLACK_CHANNEL_ID: 알림을 보낼 채널 ID (C...)
//
// 전송(SendAlert, Reply)은 호출마다 독립적인 API 요청이므로
// Poller와 멘션 리스너가 동시에 호출해도 안전

package client

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/kube-rca/finops-agent/internal/config"
	"github.com/kube-rca/finops-agent/internal/model"
	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"
)

// Slack Block Kit 텍스트 길이 제한
const (
	maxHeaderLen  = 150
	maxSectionLen = 3000
)

// SlackClient 구조체 정의
type SlackClient struct {
	api       *slack.Client
	channelID string
	botToken  string
	appToken  string
}

// SlackClient 객체 생성
// opts는 테스트에서 slack.OptionAPIURL 지정 용도
func NewSlackClient(cfg config.SlackConfig, opts ...slack.Option) *SlackClient {
	options := append([]slack.Option{slack.OptionAppLevelToken(cfg.AppToken)}, opts...)
	return &SlackClient{
		api:       slack.New(cfg.BotToken, options...),
		channelID: cfg.ChannelID,
		botToken:  cfg.BotToken,
		appToken:  cfg.AppToken,
	}
}

// SlackClient에 Bot Token과 Channel ID가 모두 설정되어 있는지 체크
func (c *SlackClient) IsConfigured() bool {
	return c.botToken != "" && c.channelID != ""
}

// SendAlert - 알림 + 분석 결과를 설정된 채널로 전송
// 실패 시 에러를 그대로 반환 (Poller가 해당 알림을 처리 완료로 표시하지 않음)
func (c *SlackClient) SendAlert(ctx context.Context, alert model.AlertInput, result model.AnalysisResult) error {
	if !c.IsConfigured() {
		return fmt.Errorf("slack bot token or channel ID not configured")
	}

	title := fmt.Sprintf("🚨 Alert: %s", alert.Name)
	_, ts, err := c.api.PostMessageContext(ctx, c.channelID,
		slack.MsgOptionText(title, false),
		slack.MsgOptionBlocks(alertBlocks(title, alert.Message, result)...),
	)
	if err != nil {
		log.Error().Err(err).Str("alert_name", alert.Name).Msg("Error sending Slack message")
		return fmt.Errorf("failed to post slack message: %w", err)
	}

	log.Info().Str("alert_name", alert.Name).Str("ts", ts).Msg("Successfully sent alert to Slack")
	return nil
}

// Reply - 지정 채널(쓰레드)로 텍스트 메시지 전송
func (c *SlackClient) Reply(ctx context.Context, channelID, threadTS, text string) error {
	options := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadTS != "" {
		options = append(options, slack.MsgOptionTS(threadTS))
	}
	if _, _, err := c.api.PostMessageContext(ctx, channelID, options...); err != nil {
		return fmt.Errorf("failed to post slack reply: %w", err)
	}
	return nil
}

// 메시지 포맷: header + 알림 내용 + 원인 분석 + 해결 방안
func alertBlocks(title, message string, result model.AnalysisResult) []slack.Block {
	return []slack.Block{
		slack.NewHeaderBlock(
			slack.NewTextBlockObject(slack.PlainTextType, truncate(title, maxHeaderLen), true, false),
		),
		section("*Alert Details:*\n" + message),
		section("*Root Cause Analysis:*\n" + toSlackMarkdown(result.RootCause)),
		section("*Proposed Solution:*\n" + toSlackMarkdown(result.Solution)),
	}
}

func section(text string) *slack.SectionBlock {
	return slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType, truncate(text, maxSectionLen), false, false),
		nil, nil,
	)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

var (
	boldPattern    = regexp.MustCompile(`\*\*(.+?)\*\*`)
	headingPattern = regexp.MustCompile(`^#{1,6}\s+(.+)$`)
)

// 모델이 생성한 Markdown을 Slack mrkdwn으로 변환
//   - **bold** -> *bold*
//   - # heading -> *heading*
//   - 코드 블록(```)과 인라인 코드(`...`) 안은 변환하지 않음
func toSlackMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	inCodeBlock := false

	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inCodeBlock = !inCodeBlock
			continue
		}
		if inCodeBlock {
			continue
		}
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			line = "**" + strings.TrimSpace(m[1]) + "**"
		}
		lines[i] = convertBold(line)
	}
	return strings.Join(lines, "\n")
}

// 백틱으로 나눈 조각 중 짝수 번째(코드 밖)만 변환
func convertBold(line string) string {
	parts := strings.Split(line, "`")
	for i := 0; i < len(parts); i += 2 {
		parts[i] = boldPattern.ReplaceAllString(parts[i], "*$1*")
	}
	return strings.Join(parts, "`")
}
