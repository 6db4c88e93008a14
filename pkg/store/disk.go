package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tmc/langchaingo/schema"
	"github.com/xhad/resumatch/pkg/llm"
)

// Disk stores each collection as one JSON file under a directory and
// searches it by brute-force cosine similarity. It suits the small,
// per-upload collections this service creates.
type Disk struct {
	dir      string
	embedder llm.Embedder

	mu          sync.Mutex
	collections map[string]*diskCollection
}

type diskRecord struct {
	ID        string         `json:"id"`
	Source    string         `json:"source"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata"`
	Embedding []float32      `json:"embedding"`
}

type diskCollection struct {
	Name    string       `json:"name"`
	Records []diskRecord `json:"records"`
}

func NewDisk(dir string, embedder llm.Embedder) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &Disk{
		dir:         dir,
		embedder:    embedder,
		collections: make(map[string]*diskCollection),
	}, nil
}

func (d *Disk) path(collection string) string {
	return filepath.Join(d.dir, collection+".json")
}

// load returns the cached collection, reading it from disk on first use.
// A nil collection means it does not exist. Callers hold d.mu.
func (d *Disk) load(collection string) (*diskCollection, error) {
	if col, ok := d.collections[collection]; ok {
		return col, nil
	}

	data, err := os.ReadFile(d.path(collection))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read collection: %w", err)
	}

	var col diskCollection
	if err := json.Unmarshal(data, &col); err != nil {
		return nil, fmt.Errorf("failed to decode collection %s: %w", collection, err)
	}
	d.collections[collection] = &col
	return &col, nil
}

func (d *Disk) persist(col *diskCollection) error {
	data, err := json.Marshal(col)
	if err != nil {
		return fmt.Errorf("failed to encode collection: %w", err)
	}

	tmp, err := os.CreateTemp(d.dir, col.Name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write collection: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write collection: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write collection: %w", err)
	}
	if err := os.Rename(tmp.Name(), d.path(col.Name)); err != nil {
		return fmt.Errorf("failed to write collection: %w", err)
	}
	return nil
}

func (d *Disk) Add(ctx context.Context, collection, source string, chunks []schema.Document) (int, error) {
	if err := validateCollection(collection); err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	vectors, err := d.embedder.EmbedDocuments(ctx, contents(chunks))
	if err != nil {
		return 0, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("failed to create embeddings: got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	col, err := d.load(collection)
	if err != nil {
		return 0, err
	}
	if col == nil {
		col = &diskCollection{Name: collection}
	}
	for _, r := range col.Records {
		if r.Source == source {
			return 0, fmt.Errorf("%w: %s", ErrDuplicateSource, source)
		}
	}

	records := make([]diskRecord, len(col.Records), len(col.Records)+len(chunks))
	copy(records, col.Records)
	for i, chunk := range chunks {
		records = append(records, diskRecord{
			ID:        chunkID(source, i),
			Source:    source,
			Content:   chunk.PageContent,
			Metadata:  chunkMetadata(chunk, source),
			Embedding: vectors[i],
		})
	}

	next := &diskCollection{Name: collection, Records: records}
	if err := d.persist(next); err != nil {
		return 0, err
	}
	d.collections[collection] = next

	return len(chunks), nil
}

func (d *Disk) Query(ctx context.Context, collection, text string, n int) ([]schema.Document, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	if n <= 0 {
		n = 5
	}

	d.mu.Lock()
	col, err := d.load(collection)
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if col == nil || len(col.Records) == 0 {
		return nil, nil
	}

	vector, err := d.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to create query embedding: %w", err)
	}

	docs := make([]schema.Document, 0, len(col.Records))
	for _, r := range col.Records {
		docs = append(docs, schema.Document{
			PageContent: r.Content,
			Metadata:    r.Metadata,
			Score:       cosineSimilarity(vector, r.Embedding),
		})
	}

	return rank(docs, n), nil
}

func (d *Disk) Reset(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.RemoveAll(d.dir); err != nil {
		return fmt.Errorf("failed to reset store: %w", err)
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("failed to reset store: %w", err)
	}
	d.collections = make(map[string]*diskCollection)
	return nil
}

func (d *Disk) Close() {}
