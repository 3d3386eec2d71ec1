package aggregate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitedigest/internal/pipeline"
	"github.com/JakeFAU/sitedigest/internal/storage/memory"
)

func putRecord(t *testing.T, store *memory.BlobStore, name, body string) {
	t.Helper()
	_, err := store.Put(context.Background(), "summaries/"+name, []byte(body))
	require.NoError(t, err)
}

func textRecord(title, url, summary string) string {
	return "[" + title + "](" + url + "): " + summary + "\n\n"
}

func TestFreshTextSortsByURL(t *testing.T) {
	store := memory.NewBlobStore()
	putRecord(t, store, "x.test_b.txt", textRecord("B", "https://x.test/b", "second"))
	putRecord(t, store, "x.test_a.txt", textRecord("A", "https://x.test/a", "first"))

	a := New(store, "summaries", zap.NewNop())
	out, err := a.Fresh(context.Background(), pipeline.FormatText, nil)
	require.NoError(t, err)
	assert.Equal(t,
		textRecord("A", "https://x.test/a", "first")+textRecord("B", "https://x.test/b", "second"),
		string(out),
	)
}

func TestFreshTextDeduplicatesKeepingLongest(t *testing.T) {
	store := memory.NewBlobStore()
	// Same URL with and without trailing slash; the longer record wins.
	putRecord(t, store, "one.txt", textRecord("A", "https://x.test/a", "short"))
	putRecord(t, store, "two.txt", textRecord("A", "https://x.test/a/", "much longer summary body"))

	a := New(store, "summaries", zap.NewNop())
	out, err := a.Fresh(context.Background(), pipeline.FormatText, nil)
	require.NoError(t, err)
	assert.Equal(t, textRecord("A", "https://x.test/a/", "much longer summary body"), string(out))
}

func TestFreshTextTieKeepsFirstSeen(t *testing.T) {
	store := memory.NewBlobStore()
	// List is sorted by name: aaa.txt is first-seen.
	putRecord(t, store, "aaa.txt", textRecord("A", "https://x.test/a", "12345"))
	putRecord(t, store, "bbb.txt", textRecord("A", "https://x.test/a", "abcde"))

	a := New(store, "summaries", zap.NewNop())
	out, err := a.Fresh(context.Background(), pipeline.FormatText, nil)
	require.NoError(t, err)
	assert.Equal(t, textRecord("A", "https://x.test/a", "12345"), string(out))
}

func TestFreshTextExcludesBlacklisted(t *testing.T) {
	store := memory.NewBlobStore()
	putRecord(t, store, "a.txt", textRecord("A", "https://x.test/a", "keep"))
	putRecord(t, store, "b.txt", textRecord("B", "https://x.test/b", "drop"))

	bl := pipeline.NewBlacklist([]string{"https://x.test/b/"})
	a := New(store, "summaries", zap.NewNop())
	out, err := a.Fresh(context.Background(), pipeline.FormatText, bl)
	require.NoError(t, err)
	assert.Equal(t, textRecord("A", "https://x.test/a", "keep"), string(out))
}

func TestFreshJSONL(t *testing.T) {
	store := memory.NewBlobStore()
	entry := func(url, summary string, keywords ...string) string {
		data, err := json.Marshal(pipeline.SummaryRecord{
			URL: url, Content: "content", Summary: summary, Keywords: keywords,
		})
		require.NoError(t, err)
		return string(data)
	}
	putRecord(t, store, "b.txt", entry("https://x.test/b", "bee", "b"))
	putRecord(t, store, "a.txt", entry("https://x.test/a", "ay", "a"))
	putRecord(t, store, "dup.txt", entry("https://x.test/a/", "a much longer duplicate summary", "a"))
	putRecord(t, store, "junk.txt", "[A](https://x.test/plain): not json\n\n")

	a := New(store, "summaries", zap.NewNop())
	out, err := a.Fresh(context.Background(), pipeline.FormatJSONL, nil)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	require.Len(t, lines, 2)

	var first, second pipeline.SummaryRecord
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "https://x.test/a/", first.URL)
	assert.Equal(t, "a much longer duplicate summary", first.Summary)
	assert.Equal(t, "https://x.test/b", second.URL)
}

func TestPreserveStructureReplacesOnlyMatchedLines(t *testing.T) {
	store := memory.NewBlobStore()
	putRecord(t, store, "u1.txt", textRecord("U1", "https://x.test/u1", "fresh summary"))

	structure := []string{
		"# Site digest",
		"",
		"[U1](https://x.test/u1): stale summary",
		"[U2](https://x.test/u2): untouched summary",
		"",
	}

	a := New(store, "summaries", zap.NewNop())
	out, err := a.PreserveStructure(context.Background(), structure, nil)
	require.NoError(t, err)

	lines := strings.Split(string(out), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "# Site digest", lines[0])
	assert.Equal(t, "[U1](https://x.test/u1): fresh summary", lines[2])
	// The unmatched line passes through byte-identical.
	assert.Equal(t, "[U2](https://x.test/u2): untouched summary", lines[3])
}

func TestPreserveStructureDropsNewURLs(t *testing.T) {
	store := memory.NewBlobStore()
	putRecord(t, store, "u1.txt", textRecord("U1", "https://x.test/u1", "fresh"))
	putRecord(t, store, "new.txt", textRecord("New", "https://x.test/new", "discovered this run"))

	structure := []string{"[U1](https://x.test/u1): stale"}
	a := New(store, "summaries", zap.NewNop())
	out, err := a.PreserveStructure(context.Background(), structure, nil)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "discovered this run")
}

func TestLoadArtifact(t *testing.T) {
	t.Run("LocalFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "llms.txt")
		require.NoError(t, os.WriteFile(path, []byte("line1\nline2"), 0o600))
		lines, err := LoadArtifact(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, []string{"line1", "line2"}, lines)
	})

	t.Run("HTTP", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("[A](https://x.test/a): s"))
		}))
		defer srv.Close()
		lines, err := LoadArtifact(context.Background(), srv.URL)
		require.NoError(t, err)
		require.Len(t, lines, 1)
	})

	t.Run("HTTPError", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()
		_, err := LoadArtifact(context.Background(), srv.URL)
		require.Error(t, err)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := LoadArtifact(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))
		require.Error(t, err)
	})
}

func TestParseArtifactURLs(t *testing.T) {
	lines := []string{
		"# heading",
		"[A](https://x.test/a/): summary",
		"[B](https://x.test/b): summary",
		"[A again](https://x.test/a): duplicate",
		"no url here",
	}
	urls := ParseArtifactURLs(lines)
	assert.Equal(t, []string{"https://x.test/a", "https://x.test/b"}, urls)
}
