// Slack Socket Mode 멘션 리스너
//
// Poller와 독립적으로 동작하며 공유하는 것은 SlackClient의 전송 메서드뿐

package client

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

// MentionListener 구조체 정의
type MentionListener struct {
	slack  *SlackClient
	socket *socketmode.Client
}

// MentionListener 객체 생성
func NewMentionListener(slackClient *SlackClient) (*MentionListener, error) {
	if slackClient.appToken == "" {
		return nil, fmt.Errorf("missing SLACK_APP_TOKEN")
	}
	return &MentionListener{
		slack:  slackClient,
		socket: socketmode.New(slackClient.api),
	}, nil
}

// Run - ctx가 취소될 때까지 Socket Mode 연결 유지 및 이벤트 처리
func (l *MentionListener) Run(ctx context.Context) error {
	go l.handleEvents(ctx)

	log.Info().Msg("Starting Slack socket mode listener")
	if err := l.socket.RunContext(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("slack socket mode stopped: %w", err)
	}
	return nil
}

func (l *MentionListener) handleEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-l.socket.Events:
			if !ok {
				return
			}
			switch evt.Type {
			case socketmode.EventTypeConnecting:
				log.Debug().Msg("Connecting to Slack with Socket Mode")
			case socketmode.EventTypeConnectionError:
				log.Warn().Msg("Slack socket mode connection failed, retrying")
			case socketmode.EventTypeConnected:
				log.Info().Msg("Connected to Slack with Socket Mode")
			case socketmode.EventTypeEventsAPI:
				eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok {
					continue
				}
				if evt.Request != nil {
					l.socket.Ack(*evt.Request)
				}
				l.handleEventsAPI(ctx, eventsAPIEvent)
			}
		}
	}
}

func (l *MentionListener) handleEventsAPI(ctx context.Context, event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	if ev, ok := event.InnerEvent.Data.(*slackevents.AppMentionEvent); ok {
		if err := l.handleMention(ctx, ev); err != nil {
			log.Error().Err(err).Str("channel", ev.Channel).Msg("Failed to reply to mention")
		}
	}
}

// 멘션한 사용자에게 인사 메시지로 응답
func (l *MentionListener) handleMention(ctx context.Context, ev *slackevents.AppMentionEvent) error {
	log.Info().Str("user", ev.User).Str("channel", ev.Channel).Msg("Received app mention")
	return l.slack.Reply(ctx, ev.Channel, "", MentionReply(ev.User))
}

// MentionReply - 멘션 응답 문구
func MentionReply(user string) string {
	return fmt.Sprintf("Hello <@%s>! I'm your FinOps assistant. How can I help you today?", user)
}
