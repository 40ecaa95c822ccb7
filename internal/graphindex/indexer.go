package graphindex

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/telos-systems/telos-core/internal/concept"
	"github.com/telos-systems/telos-core/internal/constants"
	"github.com/telos-systems/telos-core/internal/logging"
	"github.com/telos-systems/telos-core/internal/memory"
	"github.com/telos-systems/telos-core/internal/transducer"
	"github.com/telos-systems/telos-core/internal/vecmath"
)

// Store is the subset of the memory fabric's contract the indexer needs:
// writing community summaries into L2 under key = community id.
type Store interface {
	Store(ctx context.Context, key string, value memory.Value, opts memory.StoreOptions) (memory.StoreResult, error)
}

// Config configures an Indexer.
type Config struct {
	MaxLevels      int
	Resolution     float64
	BatchSize      int
	EmbeddingDim   int
	PageSize       int
	Logger         *slog.Logger
	DecisionLogger *logging.DecisionLogger
}

// DefaultConfig returns the spec's default community-detection and
// summarization tuning.
func DefaultConfig() Config {
	return Config{
		MaxLevels:    constants.DefaultMaxCommunityLevels,
		Resolution:   constants.DefaultModularityResolution,
		BatchSize:    constants.DefaultSummaryBatchSize,
		EmbeddingDim: constants.SummaryEmbeddingDim,
		PageSize:     100,
	}
}

// Indexer runs periodic Graph Indexer passes: extract the concept graph,
// detect communities, summarize each via the LLM transducer in batches,
// embed, and store both in the fabric's L2 tier and in a local cache used
// by GlobalSemanticSearch.
type Indexer struct {
	repo       concept.Repository
	store      Store
	transducer transducer.Transducer
	cfg        Config

	mu        sync.RWMutex
	summaries []Summary
}

// New constructs an Indexer. If cfg is the zero value, DefaultConfig is
// used.
func New(repo concept.Repository, store Store, t transducer.Transducer, cfg Config) *Indexer {
	if cfg.MaxLevels == 0 {
		cfg = DefaultConfig()
	}
	return &Indexer{repo: repo, store: store, transducer: t, cfg: cfg}
}

// Run performs one full indexing pass.
func (idx *Indexer) Run(ctx context.Context) error {
	graph, err := BuildGraph(ctx, idx.repo, idx.cfg.PageSize)
	if err != nil {
		return fmt.Errorf("graphindex: build graph: %w", err)
	}

	levels := DetectCommunities(graph, idx.cfg.MaxLevels, idx.cfg.Resolution)

	var allCommunities []Community
	for _, lvl := range levels {
		allCommunities = append(allCommunities, lvl.Communities...)
	}

	summaries, err := idx.summarizeAll(ctx, allCommunities)
	if err != nil {
		return fmt.Errorf("graphindex: summarize communities: %w", err)
	}

	for _, s := range summaries {
		if err := idx.persist(ctx, s); err != nil {
			return fmt.Errorf("graphindex: persist summary %s: %w", s.CommunityID, err)
		}
	}

	idx.mu.Lock()
	prev := idx.summaries
	merged := mergeStaleSummaries(prev, summaries)
	idx.summaries = merged
	idx.mu.Unlock()

	if idx.cfg.DecisionLogger != nil {
		idx.cfg.DecisionLogger.Log(map[string]any{
			"event":            "graph_index_run_completed",
			"levels":           len(levels),
			"communities":      len(allCommunities),
			"summaries_stored": len(summaries),
			"summaries_stale":  len(merged) - len(summaries),
		})
	}
	return nil
}

// mergeStaleSummaries carries forward any prev summary whose community id
// no longer appears in fresh, marked Stale, for exactly one Run — the
// "disjoint node sets per level" invariant means an id that stops being
// detected really did change membership, not just drop out of range.
// A summary already marked Stale in prev is dropped rather than carried
// forward again.
func mergeStaleSummaries(prev, fresh []Summary) []Summary {
	current := make(map[string]bool, len(fresh))
	for _, s := range fresh {
		current[s.CommunityID] = true
	}

	merged := make([]Summary, 0, len(fresh)+len(prev))
	merged = append(merged, fresh...)
	for _, p := range prev {
		if p.Stale || current[p.CommunityID] {
			continue
		}
		p.Stale = true
		merged = append(merged, p)
	}
	return merged
}

// summarizeAll generates a Summary for every community, batching transducer
// calls BatchSize at a time.
func (idx *Indexer) summarizeAll(ctx context.Context, communities []Community) ([]Summary, error) {
	var out []Summary
	batchSize := idx.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = constants.DefaultSummaryBatchSize
	}

	for start := 0; start < len(communities); start += batchSize {
		end := start + batchSize
		if end > len(communities) {
			end = len(communities)
		}
		for _, c := range communities[start:end] {
			s, err := idx.summarize(ctx, c)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
	}
	return out, nil
}

// summarize requests a (title, summary, key_concepts, relationships)
// structure from the LLM transducer for one community and embeds the
// result.
func (idx *Indexer) summarize(ctx context.Context, c Community) (Summary, error) {
	text := fmt.Sprintf("Summarize the community of concepts: %s", strings.Join(c.Nodes, ", "))
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":         map[string]any{"type": "string"},
			"summary":       map[string]any{"type": "string"},
			"key_concepts":  map[string]any{"type": "array"},
			"relationships": map[string]any{"type": "array"},
		},
	}

	result, err := idx.transducer.TextToSchema(ctx, text, schema)
	if err != nil {
		return Summary{}, fmt.Errorf("transduce community %s: %w", c.ID, err)
	}

	dim := idx.cfg.EmbeddingDim
	if dim <= 0 {
		dim = constants.SummaryEmbeddingDim
	}

	s := Summary{
		CommunityID:   c.ID,
		Level:         c.Level,
		Title:         stringField(result, "title"),
		SummaryText:   stringField(result, "summary"),
		KeyConcepts:   stringSliceField(result, "key_concepts"),
		Relationships: stringSliceField(result, "relationships"),
		GeneratedAt:   time.Now().UTC(),
	}
	s.Embedding = HashEmbedding(s.Title+" "+s.SummaryText, dim)
	return s, nil
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func stringSliceField(m map[string]any, key string) []string {
	raw, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// StaleSummaries returns the summaries currently carried forward as stale
// (their community id vanished on the most recent Run), for introspection
// tooling and tests.
func (idx *Indexer) StaleSummaries() []Summary {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []Summary
	for _, s := range idx.summaries {
		if s.Stale {
			out = append(out, s)
		}
	}
	return out
}

// persist stores a community summary in L2 under key = community id, with
// metadata type = community_summary, level (carried in the encoded
// payload; the fabric's Value has no separate metadata channel).
func (idx *Indexer) persist(ctx context.Context, s Summary) error {
	payload := encodeSummary(s)
	_, err := idx.store.Store(ctx, s.CommunityID, memory.Value{Data: payload, Vector: s.Embedding}, memory.StoreOptions{
		SizeBytes:     len(payload),
		AccessPattern: memory.AccessModerate,
		Vector:        s.Embedding,
	})
	return err
}

// GlobalSemanticSearch returns the top-k community summaries for query,
// ranked first by level (coarser communities first) then by descending
// cosine similarity. Stale summaries are excluded; use StaleSummaries to
// inspect them.
func (idx *Indexer) GlobalSemanticSearch(query []float32, k int) []Summary {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	type scored struct {
		summary    Summary
		similarity float64
	}
	scoredAll := make([]scored, 0, len(idx.summaries))
	for _, s := range idx.summaries {
		if s.Stale {
			continue
		}
		scoredAll = append(scoredAll, scored{summary: s, similarity: vecmath.CosineSimilarity(query, s.Embedding)})
	}

	sort.SliceStable(scoredAll, func(i, j int) bool {
		if scoredAll[i].summary.Level != scoredAll[j].summary.Level {
			return scoredAll[i].summary.Level > scoredAll[j].summary.Level
		}
		return scoredAll[i].similarity > scoredAll[j].similarity
	})

	if k > 0 && len(scoredAll) > k {
		scoredAll = scoredAll[:k]
	}

	out := make([]Summary, len(scoredAll))
	for i, s := range scoredAll {
		out[i] = s.summary
	}
	return out
}
