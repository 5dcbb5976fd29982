package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kube-rca/finops-agent/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAlertSource struct {
	mu        sync.Mutex
	alerts    []model.AlertInput
	missing   map[int64]bool
	listCalls int
}

func (f *fakeAlertSource) ListActiveAlerts(ctx context.Context) []model.AlertInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.alerts
}

func (f *fakeAlertSource) GetAlertDetails(ctx context.Context, id int64) (*model.AlertInput, bool) {
	if f.missing[id] {
		return nil, false
	}
	for _, a := range f.alerts {
		if a.ID == id {
			details := a
			details.Options = map[string]any{"notify_no_data": false}
			return &details, true
		}
	}
	return nil, false
}

func (f *fakeAlertSource) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

type sentAlert struct {
	alert  model.AlertInput
	result model.AnalysisResult
}

type fakeNotifier struct {
	failFor map[int64]bool
	sent    []sentAlert
}

func (f *fakeNotifier) SendAlert(ctx context.Context, alert model.AlertInput, result model.AnalysisResult) error {
	if f.failFor[alert.ID] {
		return errors.New("slack API error: channel_not_found")
	}
	f.sent = append(f.sent, sentAlert{alert: alert, result: result})
	return nil
}

type fakeAnalyzer struct {
	result   model.AnalysisResult
	analyzed []int64
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, alert model.AlertInput) model.AnalysisResult {
	f.analyzed = append(f.analyzed, alert.ID)
	return f.result
}

func TestSweepEndToEnd(t *testing.T) {
	source := &fakeAlertSource{alerts: []model.AlertInput{testAlert()}}
	gen := &fakeGenerator{response: "Root Cause Analysis\nretry storm\nProposed Solution\ncap retries"}
	analyzer := NewAnalysisService(gen, &fakeContextStore{})
	notifier := &fakeNotifier{}
	poller := NewPoller(source, analyzer, notifier, time.Minute)

	require.NoError(t, poller.Sweep(context.Background()))
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "retry storm", notifier.sent[0].result.RootCause)
	assert.Equal(t, "cap retries", notifier.sent[0].result.Solution)
	assert.NotNil(t, notifier.sent[0].alert.Options, "details are sent, not the list entry")
	assert.True(t, poller.IsSeen(testAlert().ID))

	require.NoError(t, poller.Sweep(context.Background()))
	assert.Len(t, notifier.sent, 1, "same monitor id is not processed twice")
	assert.Equal(t, 1, gen.calls)
}

func TestSweepNotificationFailureLeavesUnseen(t *testing.T) {
	alert := testAlert()
	source := &fakeAlertSource{alerts: []model.AlertInput{alert}}
	notifier := &fakeNotifier{failFor: map[int64]bool{alert.ID: true}}
	poller := NewPoller(source, &fakeAnalyzer{}, notifier, time.Minute)

	err := poller.Sweep(context.Background())
	require.Error(t, err)
	assert.False(t, poller.IsSeen(alert.ID))
	assert.Empty(t, poller.SeenIDs())
}

func TestSweepNotificationFailureAbortsRemaining(t *testing.T) {
	source := &fakeAlertSource{alerts: []model.AlertInput{{ID: 1}, {ID: 2}, {ID: 3}}}
	analyzer := &fakeAnalyzer{}
	notifier := &fakeNotifier{failFor: map[int64]bool{2: true}}
	poller := NewPoller(source, analyzer, notifier, time.Minute)

	require.Error(t, poller.Sweep(context.Background()))
	assert.Equal(t, []int64{1, 2}, analyzer.analyzed)
	assert.Equal(t, []int64{1}, poller.SeenIDs())
}

func TestSweepSkipsMissingDetails(t *testing.T) {
	source := &fakeAlertSource{
		alerts:  []model.AlertInput{{ID: 1}, {ID: 2}},
		missing: map[int64]bool{1: true},
	}
	analyzer := &fakeAnalyzer{}
	poller := NewPoller(source, analyzer, &fakeNotifier{}, time.Minute)

	require.NoError(t, poller.Sweep(context.Background()))
	assert.Equal(t, []int64{2}, analyzer.analyzed)
	assert.False(t, poller.IsSeen(1), "retried next sweep")

	source.missing = nil
	require.NoError(t, poller.Sweep(context.Background()))
	assert.Equal(t, []int64{2, 1}, analyzer.analyzed)
	assert.Equal(t, []int64{1, 2}, poller.SeenIDs())
}

func TestSweepSendsSentinelOnAnalysisFailure(t *testing.T) {
	source := &fakeAlertSource{alerts: []model.AlertInput{testAlert()}}
	analyzer := NewAnalysisService(&fakeGenerator{err: errors.New("timeout")}, &fakeContextStore{})
	notifier := &fakeNotifier{}
	poller := NewPoller(source, analyzer, notifier, time.Minute)

	require.NoError(t, poller.Sweep(context.Background()))
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, model.SentinelResult(), notifier.sent[0].result)
	assert.True(t, poller.IsSeen(testAlert().ID))
}

func TestRunSweepsUntilCancelled(t *testing.T) {
	source := &fakeAlertSource{}
	poller := NewPoller(source, &fakeAnalyzer{}, &fakeNotifier{}, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()

	require.Eventually(t, func() bool { return source.calls() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancel")
	}
}
