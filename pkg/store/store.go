package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"

	"github.com/tmc/langchaingo/schema"
)

var (
	// ErrDuplicateSource is returned when a filename was already ingested
	// into the collection. Collections are append-only.
	ErrDuplicateSource = errors.New("source already stored in collection")
	// ErrInvalidCollection is returned for names outside [A-Za-z0-9_-].
	ErrInvalidCollection = errors.New("invalid collection name")
)

// SourceKey is the metadata key carrying the originating filename.
const SourceKey = "source"

var collectionPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// VectorStore persists chunks into named, isolated collections.
type VectorStore interface {
	// Add embeds and inserts chunks with ids "{source}_{index}", creating
	// the collection if absent. It returns the number of stored chunks.
	Add(ctx context.Context, collection, source string, chunks []schema.Document) (int, error)
	// Query returns up to n chunks of one collection ordered by similarity.
	// A missing or empty collection yields an empty slice and no error.
	Query(ctx context.Context, collection, text string, n int) ([]schema.Document, error)
	// Reset destroys every collection.
	Reset(ctx context.Context) error
	Close()
}

func validateCollection(name string) error {
	if !collectionPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidCollection, name)
	}
	return nil
}

func chunkID(source string, index int) string {
	return fmt.Sprintf("%s_%d", source, index)
}

func chunkMetadata(chunk schema.Document, source string) map[string]any {
	meta := make(map[string]any, len(chunk.Metadata)+1)
	for k, v := range chunk.Metadata {
		meta[k] = v
	}
	meta[SourceKey] = source
	return meta
}

func contents(chunks []schema.Document) []string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.PageContent
	}
	return texts
}

// cosineSimilarity returns a value between -1 and 1.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// rank sorts by score descending and keeps the first n.
func rank(docs []schema.Document, n int) []schema.Document {
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].Score > docs[j].Score
	})
	if n > 0 && n < len(docs) {
		docs = docs[:n]
	}
	return docs
}
