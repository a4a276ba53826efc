package docstore

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"
)

// VectorIndex is an append-only flat vector index using exact L2 distance.
// It is guarded by a reader/writer lock so searches may run concurrently with
// each other but never with an append.
type VectorIndex struct {
	mu      sync.RWMutex
	dim     int
	vectors [][]float32
}

// VectorHit is a single nearest-neighbor result.
type VectorHit struct {
	Ordinal  int
	Distance float64
}

// NewVectorIndex constructs an empty index. The dimension is fixed by the
// first appended vector.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{}
}

// LoadVectorIndex restores an index from a JSON snapshot file. A missing file
// yields an empty index.
func LoadVectorIndex(path string) (*VectorIndex, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewVectorIndex(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index snapshot: %w", err)
	}
	var snap indexSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode index snapshot: %w", err)
	}
	return &VectorIndex{dim: snap.Dimension, vectors: snap.Vectors}, nil
}

type indexSnapshot struct {
	Dimension int         `json:"dimension"`
	Vectors   [][]float32 `json:"vectors"`
}

// Append adds a vector and returns its ordinal. The first vector fixes the
// index dimension; later vectors must match it.
func (idx *VectorIndex) Append(vec []float32) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if len(vec) == 0 {
		return 0, fmt.Errorf("empty vector")
	}
	if idx.dim == 0 {
		idx.dim = len(vec)
	} else if len(vec) != idx.dim {
		return 0, fmt.Errorf("vector dimension %d does not match index dimension %d", len(vec), idx.dim)
	}
	own := make([]float32, len(vec))
	copy(own, vec)
	idx.vectors = append(idx.vectors, own)
	return len(idx.vectors) - 1, nil
}

// Search returns up to k nearest vectors by L2 distance, closest first.
func (idx *VectorIndex) Search(query []float32, k int) ([]VectorHit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if len(idx.vectors) == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != idx.dim {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), idx.dim)
	}
	hits := make([]VectorHit, len(idx.vectors))
	for i, v := range idx.vectors {
		hits[i] = VectorHit{Ordinal: i, Distance: l2Distance(query, v)}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Len returns the number of stored vectors.
func (idx *VectorIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}

// Dimension returns the index dimension, 0 while empty.
func (idx *VectorIndex) Dimension() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dim
}

// Save writes a JSON snapshot atomically (write to temp file, then rename).
func (idx *VectorIndex) Save(path string) error {
	idx.mu.RLock()
	snap := indexSnapshot{Dimension: idx.dim, Vectors: idx.vectors}
	raw, err := json.Marshal(snap)
	idx.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode index snapshot: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write index snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace index snapshot: %w", err)
	}
	return nil
}

func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
