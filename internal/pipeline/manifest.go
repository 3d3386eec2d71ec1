package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/JakeFAU/sitedigest/internal/hash/sha256"
)

// Staging layout under the blob store root.
const (
	StagingDir   = ".staging"
	ManifestFile = "manifest.json"
)

// stagedContentName derives a stable, filesystem-safe name for a document's
// staged content from its URL.
func stagedContentName(url string) string {
	return sha256.ShortDigest([]byte(url), 16) + ".txt"
}

// StageDocuments writes each document's extracted content into the staging
// area and records a manifest describing the run. The manifest preserves
// discovery order so batch indices are stable across resumes.
func StageDocuments(ctx context.Context, store BlobStore, docs []Document) ([]ManifestEntry, error) {
	entries := make([]ManifestEntry, 0, len(docs))
	for _, doc := range docs {
		name := stagedContentName(doc.URL)
		if _, err := store.Put(ctx, path.Join(StagingDir, name), []byte(doc.Content)); err != nil {
			return nil, fmt.Errorf("stage content for %s: %w", doc.URL, err)
		}
		entries = append(entries, ManifestEntry{
			URL:         doc.URL,
			Title:       doc.Title,
			ContentFile: name,
		})
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	if _, err := store.Put(ctx, path.Join(StagingDir, ManifestFile), data); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	return entries, nil
}

// LoadManifest reads the staged manifest back from the blob store.
func LoadManifest(ctx context.Context, store BlobStore) ([]ManifestEntry, error) {
	data, err := store.Get(ctx, path.Join(StagingDir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var entries []ManifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return entries, nil
}

// LoadBatch materializes the documents for one manifest batch, reading each
// document's staged content from the blob store.
func LoadBatch(ctx context.Context, store BlobStore, entries []ManifestEntry, b Batch) ([]Document, error) {
	if b.Start < 0 || b.End > len(entries) || b.Start > b.End {
		return nil, fmt.Errorf("batch [%d,%d) out of range for manifest of %d entries", b.Start, b.End, len(entries))
	}
	docs := make([]Document, 0, b.Size())
	for _, entry := range entries[b.Start:b.End] {
		content, err := store.Get(ctx, path.Join(StagingDir, entry.ContentFile))
		if err != nil {
			return nil, fmt.Errorf("load staged content for %s: %w", entry.URL, err)
		}
		docs = append(docs, Document{
			URL:     entry.URL,
			Title:   entry.Title,
			Content: string(content),
		})
	}
	return docs, nil
}
