package memory

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/saeedalam/promptforge/pkg/types"
)

// ConstraintStore is the persistence behind the memory.
type ConstraintStore interface {
	SaveConstraint(ctx context.Context, fw types.Framework, text, pattern string) error
	Constraints(ctx context.Context, fw types.Framework) ([]types.BuildConstraint, error)
}

// Memory is the constraint memory for all frameworks. A nil store, or one
// that fails, turns every operation into a logged no-op.
type Memory struct {
	store  ConstraintStore
	cache  *lru.Cache[types.Framework, []string]
	logger *zap.Logger

	warnOnce sync.Once
}

// New returns a memory backed by store (which may be nil).
func New(store ConstraintStore, logger *zap.Logger) *Memory {
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, _ := lru.New[types.Framework, []string](len(types.Frameworks))
	return &Memory{store: store, cache: cache, logger: logger}
}

// degraded logs the first persistence failure at Warn and every later one at
// Debug.
func (m *Memory) degraded(op string, err error) {
	warned := false
	m.warnOnce.Do(func() {
		warned = true
		m.logger.Warn("constraint memory unavailable, continuing without it",
			zap.String("op", op), zap.Error(err))
	})
	if !warned {
		m.logger.Debug("constraint memory unavailable",
			zap.String("op", op), zap.Error(err))
	}
}

// Classify maps an error to a directive; see the package-level Classify.
func (m *Memory) Classify(errorText string, fw types.Framework) string {
	return Classify(errorText, fw)
}

// Save upserts a constraint. Persistence failures are logged, not returned.
func (m *Memory) Save(ctx context.Context, fw types.Framework, text, pattern string) {
	if m.store == nil {
		m.degraded("save", types.ErrPersistenceUnavailable)
		return
	}
	if err := m.store.SaveConstraint(ctx, fw, text, pattern); err != nil {
		m.degraded("save", err)
		return
	}
	m.cache.Remove(fw)
}

// Get returns the constraint texts recorded for fw, most frequent first.
func (m *Memory) Get(ctx context.Context, fw types.Framework) []string {
	if cached, ok := m.cache.Get(fw); ok {
		return clone(cached)
	}
	if m.store == nil {
		return []string{}
	}
	cs, err := m.store.Constraints(ctx, fw)
	if err != nil {
		m.degraded("get", err)
		return []string{}
	}
	texts := make([]string, 0, len(cs))
	for _, c := range cs {
		texts = append(texts, c.ConstraintText)
	}
	m.cache.Add(fw, texts)
	return clone(texts)
}

func clone(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// Learn classifies each error, persists the resulting constraints, and
// returns the distinct directives in first-seen order.
func (m *Memory) Learn(ctx context.Context, fw types.Framework, errs []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range errs {
		text, pattern := ClassifyDetail(e, fw)
		if seen[text] {
			continue
		}
		seen[text] = true
		out = append(out, text)
		m.Save(ctx, fw, text, pattern)
		m.logger.Debug("constraint learned",
			zap.String("framework", string(fw)),
			zap.String("pattern", pattern),
			zap.String("constraint", text))
	}
	return out
}
