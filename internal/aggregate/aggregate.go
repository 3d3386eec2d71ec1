// Package aggregate merges per-document summary records into the final
// artifact, either fresh or preserving a prior artifact's structure.
package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitedigest/internal/pipeline"
)

// recordURLPattern matches the "[title](url)" reference that opens every
// text record.
var recordURLPattern = regexp.MustCompile(`\[(.*?)\]\((https?://[^\s)]+)\)`)

// Aggregator reads summary records from the blob store and produces the
// merged artifact.
type Aggregator struct {
	store  pipeline.BlobStore
	prefix string
	logger *zap.Logger
}

// New builds an Aggregator over the store prefix holding per-document
// records.
func New(store pipeline.BlobStore, prefix string, logger *zap.Logger) *Aggregator {
	return &Aggregator{store: store, prefix: prefix, logger: logger}
}

// record is one stored summary with its dedup key.
type record struct {
	key  string
	body string
}

// Fresh merges all stored records: blacklisted URLs are dropped, duplicates
// collapse to the longest record (first-seen wins ties), and output is
// sorted by URL ascending. The merge logic is format-agnostic; only the
// serialization differs.
func (a *Aggregator) Fresh(ctx context.Context, format pipeline.OutputFormat, blacklist *pipeline.Blacklist) ([]byte, error) {
	records, err := a.collect(ctx, format, blacklist)
	if err != nil {
		return nil, err
	}
	records = dedupeLongest(records)
	sort.SliceStable(records, func(i, j int) bool { return records[i].key < records[j].key })

	var sb strings.Builder
	seen := make(map[string]struct{})
	for _, rec := range records {
		// Identical bodies under different keys collapse to one.
		if _, dup := seen[rec.body]; dup {
			continue
		}
		seen[rec.body] = struct{}{}
		sb.WriteString(rec.body)
		if format == pipeline.FormatJSONL {
			sb.WriteString("\n")
		}
	}
	return []byte(sb.String()), nil
}

// PreserveStructure rewrites a prior artifact line by line: a line whose URL
// reference has a fresh record is replaced by that record, every other line
// passes through byte-identical. Fresh records not referenced by any line
// are dropped — the prior structure is authoritative. This mirrors the
// original update behavior and is a documented limitation.
func (a *Aggregator) PreserveStructure(ctx context.Context, structure []string, blacklist *pipeline.Blacklist) ([]byte, error) {
	records, err := a.collect(ctx, pipeline.FormatText, blacklist)
	if err != nil {
		return nil, err
	}
	byURL := make(map[string]string, len(records))
	for _, rec := range records {
		if _, ok := byURL[rec.key]; !ok {
			byURL[rec.key] = strings.TrimSpace(rec.body)
		}
	}

	lines := make([]string, 0, len(structure))
	replaced := 0
	for _, line := range structure {
		match := recordURLPattern.FindStringSubmatch(line)
		if match != nil {
			if fresh, ok := byURL[pipeline.NormalizeKey(match[2])]; ok {
				lines = append(lines, fresh)
				replaced++
				continue
			}
		}
		lines = append(lines, line)
	}
	a.logger.Info("structure-preserving merge complete",
		zap.Int("lines", len(structure)),
		zap.Int("replaced", replaced),
	)
	return []byte(strings.Join(lines, "\n")), nil
}

// collect loads every record under the prefix, attaching its normalized URL
// key. Unreadable or malformed records are logged and skipped.
func (a *Aggregator) collect(ctx context.Context, format pipeline.OutputFormat, blacklist *pipeline.Blacklist) ([]record, error) {
	names, err := a.store.List(ctx, a.prefix)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}

	var records []record
	for _, name := range names {
		if !strings.HasSuffix(name, ".txt") {
			continue
		}
		data, err := a.store.Get(ctx, path.Join(a.prefix, name))
		if err != nil {
			a.logger.Warn("unreadable summary record", zap.String("file", name), zap.Error(err))
			continue
		}

		var key, body string
		if format == pipeline.FormatJSONL {
			var entry pipeline.SummaryRecord
			if err := json.Unmarshal(data, &entry); err != nil || entry.URL == "" {
				a.logger.Debug("skipping non-record file", zap.String("file", name))
				continue
			}
			serialized, err := json.Marshal(&entry)
			if err != nil {
				continue
			}
			key = pipeline.NormalizeKey(entry.URL)
			body = string(serialized)
		} else {
			body = string(data)
			match := recordURLPattern.FindStringSubmatch(body)
			if match != nil {
				key = pipeline.NormalizeKey(match[2])
			} else {
				// No URL reference: the file name keys the record.
				key = name
			}
		}

		if blacklist.Contains(key) {
			continue
		}
		records = append(records, record{key: key, body: body})
	}
	return records, nil
}

// dedupeLongest collapses records sharing a key to the longest body,
// keeping first-seen order among keys and on length ties.
func dedupeLongest(records []record) []record {
	best := make(map[string]int)
	var out []record
	for _, rec := range records {
		idx, ok := best[rec.key]
		if !ok {
			best[rec.key] = len(out)
			out = append(out, rec)
			continue
		}
		if len(rec.body) > len(out[idx].body) {
			out[idx] = rec
		}
	}
	return out
}

// LoadArtifact reads a prior artifact from a local path or an http(s) URL
// and returns its lines.
func LoadArtifact(ctx context.Context, ref string) ([]string, error) {
	var content []byte
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
		if err != nil {
			return nil, fmt.Errorf("build artifact request: %w", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch artifact: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch artifact: status %d", resp.StatusCode)
		}
		content, err = io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read artifact: %w", err)
		}
	} else {
		var err error
		content, err = os.ReadFile(ref)
		if err != nil {
			return nil, fmt.Errorf("read artifact: %w", err)
		}
	}
	return strings.Split(string(content), "\n"), nil
}

// ParseArtifactURLs extracts the ordered, deduplicated URL list referenced
// by an artifact's lines, used to seed update-mode discovery.
func ParseArtifactURLs(lines []string) []string {
	seen := make(map[string]struct{})
	var urls []string
	for _, line := range lines {
		match := recordURLPattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		u := pipeline.NormalizeKey(match[2])
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	return urls
}
