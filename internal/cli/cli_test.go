package cli

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/logseq-rag/internal/config"
	"github.com/raphaelgruber/logseq-rag/internal/service"
)

func TestResolvePath(t *testing.T) {
	t.Cleanup(func() {
		journalPath = ""
		cfg = config.Config{}
	})

	journalPath, cfg = "", config.Config{}
	_, err := resolvePath()
	assert.Equal(t, "path must be provided via -p/--path or LOGSEQ_JOURNAL_PATH env var", err.Error())

	cfg.JournalPath = "/from/env"
	p, err := resolvePath()
	require.NoError(t, err)
	assert.Equal(t, "/from/env", p)

	journalPath = "/from/flag"
	p, err = resolvePath()
	require.NoError(t, err)
	assert.Equal(t, "/from/flag", p)
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "- short", snippet("  - short\n", 10))
	assert.Equal(t, "- Morning...", snippet("- Morning thoughts", 9))
}

func TestSummary(t *testing.T) {
	out := summary(defaultTheme, &service.UploadResult{Days: 3, Chunks: 11, Errors: []string{"2025-03-28: throttled"}})
	assert.Contains(t, out, "Days uploaded:   3")
	assert.Contains(t, out, "Chunks created:  11")
	assert.Contains(t, out, "2025-03-28: throttled")
}

func TestProgressModelStopsWhenJobFinishes(t *testing.T) {
	jobs := service.NewJobManager(nil)
	job := jobs.CreateJob("2025-03-27", "2025-03-28")
	jobs.UpdateProgress(job, 1, 2, "2025-03-27")

	m := newProgressModel(job, nil)
	next, cmd := m.Update(tickMsg(time.Now()))
	pm := next.(progressModel)
	assert.False(t, pm.done)
	assert.NotNil(t, cmd)
	assert.Contains(t, pm.renderContent(), "1/2 days")

	jobs.Complete(job, &service.UploadResult{Days: 2, Chunks: 4})
	next, _ = pm.Update(tickMsg(time.Now()))
	pm = next.(progressModel)
	assert.True(t, pm.done)
	assert.NoError(t, pm.err)
	assert.Contains(t, pm.renderContent(), "Chunks created:  4")
}

func TestProgressModelReportsFailure(t *testing.T) {
	jobs := service.NewJobManager(nil)
	job := jobs.CreateJob("2025-03-27", "2025-03-27")
	jobs.Fail(job, nil, errors.New("quota exceeded"))

	next, _ := newProgressModel(job, nil).Update(tickMsg(time.Now()))
	pm := next.(progressModel)
	assert.True(t, pm.done)
	assert.EqualError(t, pm.err, "quota exceeded")
}
