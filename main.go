package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kube-rca/finops-agent/internal/client"
	"github.com/kube-rca/finops-agent/internal/config"
	"github.com/kube-rca/finops-agent/internal/handler"
	"github.com/kube-rca/finops-agent/internal/logging"
	"github.com/kube-rca/finops-agent/internal/rag"
	"github.com/kube-rca/finops-agent/internal/service"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var runOnce bool

var rootCmd = &cobra.Command{
	Use:   "finops-agent",
	Short: "Analyze Datadog alerts with an LLM and post the results to Slack",
	// run에서 이미 로그를 남기므로 cobra의 에러 출력은 끔
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().BoolVar(&runOnce, "once", false, "Run a single alert sweep and exit")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		fmt.Fprintf(cmd.ErrOrStderr(), "%v\n\n%s", err, cmd.UsageString())
		return err
	})
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// 앱 구성
type app struct {
	poller   *service.Poller
	listener *client.MentionListener
	server   *http.Server
}

func run(ctx context.Context) error {
	// 1. 설정 로딩 + 필수값 검증 (누락 시 즉시 종료)
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize")
		return err
	}

	if runOnce {
		return a.poller.Sweep(ctx)
	}
	return a.serve(ctx)
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	// 2. 외부 클라이언트 생성
	datadogClient := client.NewDatadogClient(cfg.Datadog)
	checkDatadog(ctx, datadogClient)

	slackClient := client.NewSlackClient(cfg.Slack)

	genaiClient, err := client.NewGenAIClient(cfg.AI)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	embeddingClient, err := client.NewEmbeddingClient(cfg.AI)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	listener, err := client.NewMentionListener(slackClient)
	if err != nil {
		return nil, err
	}

	// 3. 서비스 계층 구성
	store := rag.NewStore(embeddingClient, rag.StoreConfig{
		Capacity:        rag.DefaultCapacity,
		MaxContextChars: cfg.RAG.MaxContextChars,
	})
	analysisService := service.NewAnalysisService(genaiClient, store)
	poller := service.NewPoller(datadogClient, analysisService, slackClient, cfg.Poller.Interval)

	a := &app{poller: poller, listener: listener}

	// 4. HTTP 서버 (HTTP_ADDR가 비어 있으면 비활성화)
	if cfg.Server.Addr != "" {
		if cfg.Log.Level != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}
		router := handler.NewRouter(handler.NewHistoryHandler(store, poller))
		a.server = &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	log.Info().
		Str("model", genaiClient.Model()).
		Str("channel", cfg.Slack.ChannelID).
		Dur("interval", cfg.Poller.Interval).
		Msg("FinOps agent initialized")
	return a, nil
}

type connectionChecker interface {
	CheckConnection(ctx context.Context) error
}

// checkDatadog - 기동 시 연결 확인 (실패해도 계속 진행, 성공 로그는 클라이언트가 남김)
func checkDatadog(ctx context.Context, checker connectionChecker) {
	if err := checker.CheckConnection(ctx); err != nil {
		log.Warn().Err(err).Msg("Datadog connection check failed, continuing")
	}
}

// serve - Poller, Slack 멘션 리스너, HTTP 서버를 함께 실행
// Poller는 ctx 취소로만 종료. 리스너/HTTP 서버가 실패해도 로그만 남기고 알림 처리는 계속
func (a *app) serve(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.poller.Run(gCtx)
	})

	if a.listener != nil {
		g.Go(func() error {
			if err := a.listener.Run(gCtx); err != nil {
				log.Error().Err(err).Msg("Slack mention listener stopped, alert polling continues")
			}
			return nil
		})
	}

	if a.server != nil {
		g.Go(func() error {
			log.Info().Str("addr", a.server.Addr).Msg("Starting HTTP server")
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("HTTP server stopped, alert polling continues")
			}
			return nil
		})
		g.Go(func() error {
			<-gCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return a.server.Shutdown(shutdownCtx)
		})
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("FinOps agent stopped with error")
		return err
	}
	log.Info().Msg("FinOps agent stopped")
	return nil
}
