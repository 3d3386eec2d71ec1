package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitedigest/internal/aggregate"
	"github.com/JakeFAU/sitedigest/internal/clock/system"
	"github.com/JakeFAU/sitedigest/internal/crawler"
	"github.com/JakeFAU/sitedigest/internal/pipeline"
	"github.com/JakeFAU/sitedigest/internal/progress"
	"github.com/JakeFAU/sitedigest/internal/storage/memory"
	"github.com/JakeFAU/sitedigest/internal/worker"
)

type stubFetcher struct {
	mu    sync.Mutex
	pages map[string]string
}

func (f *stubFetcher) Fetch(_ context.Context, rawURL string) (pipeline.Page, error) {
	f.mu.Lock()
	body, ok := f.pages[rawURL]
	f.mu.Unlock()
	if !ok {
		return pipeline.Page{}, fmt.Errorf("connection refused")
	}
	return pipeline.Page{URL: rawURL, FinalURL: rawURL, StatusCode: 200, Body: []byte(body)}, nil
}

type textExtractor struct{}

func (textExtractor) Extract(html, _ string) (string, error) { return html, nil }

type countingSummarizer struct {
	mu    sync.Mutex
	calls int
}

func (s *countingSummarizer) Summarize(_ context.Context, _, content string) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return "summary of " + content, nil
}

type trackingCheckpoint struct {
	mu      sync.Mutex
	entries map[string]string
	flushes int
}

func newTrackingCheckpoint() *trackingCheckpoint {
	return &trackingCheckpoint{entries: make(map[string]string)}
}

func (c *trackingCheckpoint) Has(url string) bool { _, ok := c.Get(url); return ok }

func (c *trackingCheckpoint) Get(url string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	name, ok := c.entries[url]
	return name, ok
}

func (c *trackingCheckpoint) Put(url, filename string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[url] = filename
}

func (c *trackingCheckpoint) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushes++
	return nil
}

// site builds 25 pages: a root linking to 24 children.
func site() map[string]string {
	pages := make(map[string]string)
	var links strings.Builder
	for i := 1; i <= 24; i++ {
		links.WriteString(fmt.Sprintf(`<a href="/docs/p%02d">p</a>`, i))
		pages[fmt.Sprintf("https://x.test/docs/p%02d", i)] = fmt.Sprintf("<html><title>P%02d</title><body>content %02d</body></html>", i, i)
	}
	pages["https://x.test/docs"] = "<html><title>Docs</title><body>" + links.String() + "</body></html>"
	return pages
}

func newLocal(fetcher pipeline.Fetcher, s pipeline.Summarizer, store pipeline.BlobStore, cp pipeline.CheckpointStore, bl *pipeline.Blacklist) *Local {
	logger := zap.NewNop()
	c := crawler.New(
		crawler.Config{MaxDepth: 1, MaxConcurrent: 3},
		fetcher,
		textExtractor{},
		crawler.NewLimiter(crawler.LimiterConfig{DefaultRPS: 0}),
		logger,
	)
	pool := worker.NewPool(worker.PoolConfig{
		MaxConcurrent:   5,
		Format:          pipeline.FormatText,
		Prompt:          "Summarize this page.",
		SummariesPrefix: "summaries",
		Retry:           pipeline.RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2},
	}, s, store, cp, bl, logger)
	agg := aggregate.New(store, "summaries", logger)
	return NewLocal(c, pool, agg, store, cp, bl, logger)
}

func TestLocalRunEndToEnd(t *testing.T) {
	fetcher := &stubFetcher{pages: site()}
	summ := &countingSummarizer{}
	store := memory.NewBlobStore()
	cp := newTrackingCheckpoint()
	l := newLocal(fetcher, summ, store, cp, nil)

	res, err := l.Run(context.Background(), Input{
		Roots:             []string{"https://x.test/docs"},
		Format:            pipeline.FormatText,
		OutputFile:        "llms.txt",
		BatchSize:         10,
		ContinueThreshold: 500,
	})
	require.NoError(t, err)

	assert.Equal(t, 25, res.Counts.Discovered)
	assert.Equal(t, 25, res.Counts.Summarized)
	assert.Equal(t, 0, res.Counts.Failed)
	assert.Equal(t, 25, summ.calls)
	// 25 documents, batch size 10: one flush per batch.
	assert.Equal(t, 3, cp.flushes)
	assert.Equal(t, "memory://llms.txt", res.ArtifactURI)

	artifact, err := store.Get(context.Background(), "llms.txt")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(artifact), "\n"), "\n\n")
	require.Len(t, lines, 25)
	// Sorted by URL: the root comes first, then p01..p24.
	assert.Contains(t, lines[0], "https://x.test/docs)")
	assert.Contains(t, lines[1], "https://x.test/docs/p01")
	assert.Contains(t, lines[24], "https://x.test/docs/p24")
}

func TestLocalRunResumeIsIdempotent(t *testing.T) {
	fetcher := &stubFetcher{pages: site()}
	store := memory.NewBlobStore()
	cp := newTrackingCheckpoint()

	first := &countingSummarizer{}
	l := newLocal(fetcher, first, store, cp, nil)
	in := Input{
		Roots:      []string{"https://x.test/docs"},
		Format:     pipeline.FormatText,
		OutputFile: "llms.txt",
		BatchSize:  10,
	}
	res1, err := l.Run(context.Background(), in)
	require.NoError(t, err)
	artifact1, err := store.Get(context.Background(), "llms.txt")
	require.NoError(t, err)

	// A second run over the same checkpoint re-does no model work. The
	// crawler dedups per instance, so build a fresh pipeline around the
	// shared store and checkpoint.
	second := &countingSummarizer{}
	l2 := newLocal(&stubFetcher{pages: site()}, second, store, cp, nil)
	res2, err := l2.Run(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, 0, second.calls, "resumed run must skip checkpointed documents")
	assert.Equal(t, res1.Counts.Discovered, res2.Counts.Discovered)
	assert.Equal(t, res1.Counts.Summarized, res2.Counts.Summarized)

	artifact2, err := store.Get(context.Background(), "llms.txt")
	require.NoError(t, err)
	assert.Equal(t, string(artifact1), string(artifact2), "backends and reruns must produce identical artifacts")
}

func TestLocalRunContinueThresholdIsInvisible(t *testing.T) {
	fetcher := &stubFetcher{pages: site()}
	store := memory.NewBlobStore()
	cp := newTrackingCheckpoint()
	l := newLocal(fetcher, &countingSummarizer{}, store, cp, nil)

	// Threshold far below the document count: the run still yields a single
	// complete result.
	res, err := l.Run(context.Background(), Input{
		Roots:             []string{"https://x.test/docs"},
		Format:            pipeline.FormatText,
		OutputFile:        "llms.txt",
		BatchSize:         5,
		ContinueThreshold: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, 25, res.Counts.Summarized)
	assert.Equal(t, 5, cp.flushes)
}

func TestLocalRunUpdateModePreservesStructure(t *testing.T) {
	artifactPath := filepath.Join(t.TempDir(), "llms.txt")
	prior := "# Digest\n[U1](https://x.test/u1): stale one\n[U2](https://x.test/u2): stale two\n"
	require.NoError(t, os.WriteFile(artifactPath, []byte(prior), 0o600))

	// Only u1 is reachable this run; u2's fetch fails and its line must
	// survive byte-identical.
	fetcher := &stubFetcher{pages: map[string]string{
		"https://x.test/u1": "<html><title>U1</title><body>fresh u1</body></html>",
	}}
	store := memory.NewBlobStore()
	cp := newTrackingCheckpoint()
	l := newLocal(fetcher, &countingSummarizer{}, store, cp, nil)

	res, err := l.Run(context.Background(), Input{
		ExistingArtifact:  artifactPath,
		PreserveStructure: true,
		Format:            pipeline.FormatText,
		OutputFile:        "llms.txt",
		BatchSize:         10,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Counts.Discovered)

	artifact, err := store.Get(context.Background(), "llms.txt")
	require.NoError(t, err)
	lines := strings.Split(string(artifact), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Equal(t, "# Digest", lines[0])
	assert.Contains(t, lines[1], "summary of")
	assert.Equal(t, "[U2](https://x.test/u2): stale two", lines[2])
}

type capturingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (e *capturingEmitter) Emit(evt progress.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, evt)
}

func (e *capturingEmitter) byStage(stage progress.Stage) []progress.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []progress.Event
	for _, evt := range e.events {
		if evt.Stage == stage {
			out = append(out, evt)
		}
	}
	return out
}

func TestLocalRunEmitsProgressEvents(t *testing.T) {
	fetcher := &stubFetcher{pages: site()}
	store := memory.NewBlobStore()
	l := newLocal(fetcher, &countingSummarizer{}, store, newTrackingCheckpoint(), nil)

	emitter := &capturingEmitter{}
	l.SetProgress(emitter, system.New())

	_, err := l.Run(context.Background(), Input{
		Roots:      []string{"https://x.test/docs"},
		Format:     pipeline.FormatText,
		OutputFile: "llms.txt",
		BatchSize:  10,
	})
	require.NoError(t, err)

	require.Len(t, emitter.byStage(progress.StageRunStart), 1)
	require.Len(t, emitter.byStage(progress.StageRunDone), 1)
	assert.Empty(t, emitter.byStage(progress.StageRunError))
	assert.Len(t, emitter.byStage(progress.StageBatchDone), 3)
	docs := emitter.byStage(progress.StageDocumentDone)
	require.Len(t, docs, 25)
	for _, evt := range docs {
		assert.Equal(t, progress.OutcomeSummarized, evt.Outcome)
		assert.NotEmpty(t, evt.URL)
	}
	// All events belong to the same run.
	runID := docs[0].RunID
	for _, evt := range emitter.events {
		assert.Equal(t, runID, evt.RunID)
	}
	assert.Equal(t, int64(25), emitter.byStage(progress.StageRunDone)[0].Docs)
}

func TestLocalRunEmitsRunErrorOnFailedDiscovery(t *testing.T) {
	l := newLocal(&stubFetcher{pages: map[string]string{}}, &countingSummarizer{}, memory.NewBlobStore(), newTrackingCheckpoint(), nil)
	emitter := &capturingEmitter{}
	l.SetProgress(emitter, system.New())

	_, err := l.Run(context.Background(), Input{OutputFile: "llms.txt", BatchSize: 10})
	require.Error(t, err)

	errs := emitter.byStage(progress.StageRunError)
	require.Len(t, errs, 1)
	assert.NotEmpty(t, errs[0].Note)
}

func TestLocalRunFailsWithoutRoots(t *testing.T) {
	l := newLocal(&stubFetcher{pages: map[string]string{}}, &countingSummarizer{}, memory.NewBlobStore(), newTrackingCheckpoint(), nil)
	_, err := l.Run(context.Background(), Input{OutputFile: "llms.txt", BatchSize: 10})
	require.Error(t, err)
}
