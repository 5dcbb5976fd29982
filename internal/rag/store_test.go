package rag

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"testing"

	"github.com/kube-rca/finops-agent/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bag-of-words 해시 임베딩 (같은 텍스트 -> 같은 벡터)
type hashEmbedder struct {
	calls int
}

func (f *hashEmbedder) EmbedText(ctx context.Context, text string) ([]float32, string, error) {
	f.calls++
	vec := make([]float32, 32)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[h.Sum32()%32]++
	}
	return vec, "fake-embedding", nil
}

// 텍스트별로 고정된 벡터 반환
type mapEmbedder map[string][]float32

func (m mapEmbedder) EmbedText(ctx context.Context, text string) ([]float32, string, error) {
	vec, ok := m[text]
	if !ok {
		return nil, "", fmt.Errorf("no vector for %q", text)
	}
	return vec, "fake-embedding", nil
}

type failingEmbedder struct{}

func (failingEmbedder) EmbedText(ctx context.Context, text string) ([]float32, string, error) {
	return nil, "", errors.New("quota exceeded")
}

func alert(name, message, query string) model.AlertInput {
	return model.AlertInput{Name: name, Message: message, Query: query, Tags: []string{"env:test"}, State: "Alert"}
}

func TestQueryEmptyStore(t *testing.T) {
	emb := &hashEmbedder{}
	store := NewStore(emb, StoreConfig{})

	got, err := store.Query(context.Background(), alert("cpu", "cpu high", "avg:cpu"), DefaultTopK)
	require.NoError(t, err)
	assert.Equal(t, "", got)
	assert.Equal(t, 0, emb.calls, "empty store must not call the embedder")
}

func TestInsertCountsUpToCapacity(t *testing.T) {
	store := NewStore(&hashEmbedder{}, StoreConfig{})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, store.Insert(ctx, alert(fmt.Sprintf("a%d", i), "msg", "q"), "rc", "sol"))
	}
	assert.Equal(t, 10, store.Len())
}

func TestInsertEvictsOldestBeyondCapacity(t *testing.T) {
	store := NewStore(&hashEmbedder{}, StoreConfig{})
	ctx := context.Background()

	for i := 0; i < DefaultCapacity+1; i++ {
		require.NoError(t, store.Insert(ctx, alert(fmt.Sprintf("alert-%d", i), "msg", "q"), "rc", "sol"))
	}

	records := store.Records()
	require.Len(t, records, DefaultCapacity)
	assert.Equal(t, "alert-1", records[0].AlertName)
	assert.Equal(t, fmt.Sprintf("alert-%d", DefaultCapacity), records[len(records)-1].AlertName)
	for _, r := range records {
		assert.NotEqual(t, "alert-0", r.AlertName)
	}
}

func TestInsertSetsRecordFields(t *testing.T) {
	store := NewStore(&hashEmbedder{}, StoreConfig{})
	in := alert("Lambda cost spike", "invocations above 10000", "sum:custom.lambda.invocations{*}")

	require.NoError(t, store.Insert(context.Background(), in, "burst traffic", "add throttling"))

	records := store.Records()
	require.Len(t, records, 1)
	r := records[0]
	assert.NotEmpty(t, r.ID)
	assert.False(t, r.Timestamp.IsZero())
	assert.Equal(t, in.Name, r.AlertName)
	assert.Equal(t, in.Message, r.AlertMessage)
	assert.Equal(t, in.Query, r.AlertQuery)
	assert.Equal(t, in.Tags, r.AlertTags)
	assert.Equal(t, "burst traffic", r.Analysis)
	assert.Equal(t, "add throttling", r.Solution)
	assert.Len(t, r.Embedding, 32)
}

func TestInsertPropagatesEmbeddingError(t *testing.T) {
	store := NewStore(failingEmbedder{}, StoreConfig{})

	err := store.Insert(context.Background(), alert("a", "b", "c"), "rc", "sol")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Equal(t, 0, store.Len())
}

func TestInsertRejectsDimensionChange(t *testing.T) {
	emb := mapEmbedder{
		"a q": {1, 0},
		"b q": {1, 0, 0},
	}
	store := NewStore(emb, StoreConfig{})
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, alert("a", "a", "q"), "rc", "sol"))
	err := store.Insert(ctx, alert("b", "b", "q"), "rc", "sol")
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, 1, store.Len())
}

func TestSearchIdenticalTextRanksFirst(t *testing.T) {
	store := NewStore(&hashEmbedder{}, StoreConfig{})
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, alert("disk", "disk usage above 90 percent", "avg:system.disk.in_use"), "rc1", "s1"))
	target := alert("ec2", "ec2 spend exceeded daily budget", "sum:aws.cost.ec2")
	require.NoError(t, store.Insert(ctx, target, "rc2", "s2"))
	require.NoError(t, store.Insert(ctx, alert("rds", "rds connections saturated", "avg:aws.rds.connections"), "rc3", "s3"))

	results, err := store.Search(ctx, target, DefaultTopK)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "ec2", results[0].Record.AlertName)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestSearchTieKeepsInsertionOrder(t *testing.T) {
	emb := mapEmbedder{
		"first ":  {1, 1},
		"second ": {1, -1},
		"query ":  {1, 0},
	}
	ctx := context.Background()

	store := NewStore(emb, StoreConfig{})
	require.NoError(t, store.Insert(ctx, alert("first", "first", ""), "rc", "sol"))
	require.NoError(t, store.Insert(ctx, alert("second", "second", ""), "rc", "sol"))

	results, err := store.Search(ctx, alert("q", "query", ""), DefaultTopK)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.InDelta(t, results[0].Score, results[1].Score, 1e-12)
	assert.Equal(t, "first", results[0].Record.AlertName)

	reversed := NewStore(emb, StoreConfig{})
	require.NoError(t, reversed.Insert(ctx, alert("second", "second", ""), "rc", "sol"))
	require.NoError(t, reversed.Insert(ctx, alert("first", "first", ""), "rc", "sol"))

	results, err = reversed.Search(ctx, alert("q", "query", ""), DefaultTopK)
	require.NoError(t, err)
	assert.Equal(t, "second", results[0].Record.AlertName)
}

func TestQueryAppliesTopKAndThreshold(t *testing.T) {
	emb := mapEmbedder{
		"same ":    {1, 0},
		"close ":   {0.9, 0.1},
		"near ":    {0.8, 0.2},
		"closer ":  {0.95, 0.05},
		"far ":     {0, 1},
		"current ": {1, 0},
	}
	ctx := context.Background()
	store := NewStore(emb, StoreConfig{})
	for _, name := range []string{"far", "near", "close", "closer", "same"} {
		require.NoError(t, store.Insert(ctx, alert(name, name, ""), "rc-"+name, "sol-"+name))
	}

	got, err := store.Query(ctx, alert("cur", "current", ""), DefaultTopK)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(got, ContextHeader+"\n\n"))
	assert.Contains(t, got, "Alert: same\n")
	assert.Contains(t, got, "Alert: closer\n")
	assert.Contains(t, got, "Alert: close\n")
	assert.NotContains(t, got, "Alert: near\n", "outside top-k")
	assert.NotContains(t, got, "Alert: far\n")
}

func TestQueryNothingAboveThreshold(t *testing.T) {
	emb := mapEmbedder{
		"old ": {0, 1},
		"new ": {1, 0},
	}
	ctx := context.Background()
	store := NewStore(emb, StoreConfig{})
	require.NoError(t, store.Insert(ctx, alert("old", "old", ""), "rc", "sol"))

	got, err := store.Query(ctx, alert("new", "new", ""), DefaultTopK)
	require.NoError(t, err)
	assert.Equal(t, ContextHeader+"\n\n", got)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}
