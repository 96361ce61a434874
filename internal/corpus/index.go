package corpus

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"

	"portfolio-chatter/internal/llm"
)

// Index is an in-memory vector store over embedded chunks.
type Index struct {
	chunks []Chunk
	vecs   [][]float32
}

// BuildIndex embeds every chunk.
func BuildIndex(ctx context.Context, embedder llm.Embedder, chunks []Chunk) (*Index, error) {
	if len(chunks) == 0 {
		return &Index{}, nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed corpus: %w", err)
	}
	if len(vecs) != len(chunks) {
		return nil, fmt.Errorf("embed corpus: want %d vectors, got %d", len(chunks), len(vecs))
	}
	return &Index{chunks: chunks, vecs: vecs}, nil
}

func (ix *Index) Len() int { return len(ix.chunks) }

type scored struct {
	idx   int
	score float64
}

// Search returns up to k chunks most similar to query, best first.
func (ix *Index) Search(ctx context.Context, embedder llm.Embedder, query string, k int) ([]Chunk, error) {
	if len(ix.chunks) == 0 || k <= 0 {
		return nil, nil
	}
	qv, err := embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(qv) != 1 {
		return nil, fmt.Errorf("embed query: want 1 vector, got %d", len(qv))
	}
	results := make([]scored, len(ix.vecs))
	for i, v := range ix.vecs {
		results[i] = scored{idx: i, score: cosine(qv[0], v)}
	}
	sort.SliceStable(results, func(a, b int) bool { return results[a].score > results[b].score })

	out := make([]Chunk, 0, min(k, len(results)))
	for _, r := range results[:min(k, len(results))] {
		out = append(out, ix.chunks[r.idx])
	}
	return out, nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := 0; i < len(a) && i < len(b); i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Retriever builds the index lazily on first use. A failed build is retried on the next call.
type Retriever struct {
	dir      string
	embedder llm.Embedder
	splitter *Splitter

	mu    sync.Mutex
	index *Index
}

func NewRetriever(dir string, embedder llm.Embedder) *Retriever {
	return &Retriever{
		dir:      dir,
		embedder: embedder,
		splitter: NewSplitter(DefaultChunkSize, DefaultChunkOverlap),
	}
}

func (r *Retriever) ensureIndex(ctx context.Context) (*Index, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index != nil {
		return r.index, nil
	}
	docs, err := LoadDir(r.dir)
	if err != nil {
		return nil, err
	}
	chunks := r.splitter.SplitDocuments(docs)
	ix, err := BuildIndex(ctx, r.embedder, chunks)
	if err != nil {
		return nil, err
	}
	log.Printf("🔎 Vector index ready: %d chunks", ix.Len())
	r.index = ix
	return ix, nil
}

// Search returns the k most relevant chunks for query.
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]Chunk, error) {
	ix, err := r.ensureIndex(ctx)
	if err != nil {
		return nil, err
	}
	return ix.Search(ctx, r.embedder, query, k)
}
