package graphindex

import (
	"hash/fnv"

	"github.com/telos-systems/telos-core/internal/vecmath"
)

// HashEmbedding produces a deterministic dim-dimensional pseudo-embedding
// for text, standing in for a real embedding model: an FNV-1a hash of text
// seeds a linear congruential generator whose successive outputs fill each
// dimension, scaled to [0,1] and then L2-normalized so cosine similarity
// behaves like a real embedding space.
func HashEmbedding(text string, dim int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	out := make([]float32, dim)
	for i := 0; i < dim; i++ {
		out[i] = float32((seed>>(uint(i)%56))&0xFF) / 255.0
		seed = seed*6364136223846793005 + 1442695040888963407
	}
	vecmath.Normalize(out)
	return out
}
