package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecord(t *testing.T) {
	c := NewCollector()

	c.Record(OpEmbedding, 10*time.Millisecond, 3, nil)
	c.Record(OpEmbedding, 30*time.Millisecond, 1, errors.New("boom"))

	snap := c.Snapshot()
	emb := snap.Operations[OpEmbedding]
	require.NotNil(t, emb)

	assert.Equal(t, int64(2), emb.Count)
	assert.Equal(t, int64(1), emb.Errors)
	assert.Equal(t, int64(4), emb.Items)
	assert.Equal(t, int64(40), emb.TotalTimeMs)
	assert.Equal(t, 20.0, emb.AvgTimeMs)
	assert.Equal(t, int64(10), emb.MinTimeMs)
	assert.Equal(t, int64(30), emb.MaxTimeMs)
	assert.Nil(t, emb.TotalInputTokens)

	assert.NotContains(t, snap.Operations, OpDBSearch, "unused ops are omitted")
}

func TestCollectorLLMUsage(t *testing.T) {
	c := NewCollector()
	c.RecordLLMUsage(OpLLMGenerate, time.Second, 120, 40, nil)
	c.RecordLLMUsage(OpLLMGenerate, time.Second, 80, 10, nil)

	llm := c.Snapshot().Operations[OpLLMGenerate]
	require.NotNil(t, llm)
	require.NotNil(t, llm.TotalInputTokens)
	assert.Equal(t, int64(200), *llm.TotalInputTokens)
	assert.Equal(t, int64(50), *llm.TotalOutputTokens)
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.Record(OpDBCommit, time.Millisecond, 1, nil)
	c.RecordLLMUsage(OpLLMGenerate, time.Millisecond, 1, 1, nil)
	assert.Empty(t, c.Snapshot().Operations)
}

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Record(OpDBCommit, time.Millisecond, 2, nil)
		}()
	}
	wg.Wait()

	commit := c.Snapshot().Operations[OpDBCommit]
	require.NotNil(t, commit)
	assert.Equal(t, int64(50), commit.Count)
	assert.Equal(t, int64(100), commit.Items)
}
