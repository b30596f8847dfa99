package recsplit

import (
	"context"
	"fmt"

	rserrors "github.com/tamirms/recsplit/errors"
	"github.com/tamirms/recsplit/internal/settings"
)

// Builder creates descriptions for key sets and evaluators for
// descriptions, using one hash family and one set of build parameters.
//
// Usage:
//
//	b, err := recsplit.NewBuilder[string](hashfunc.XXH3String{}, recsplit.WithLeafSize(8))
//	desc, err := b.Generate(ctx, keys)
//	eval, err := b.NewEvaluator(desc)
//	idx := eval.Evaluate("some key") // in [0, len(keys))
//
// A Builder is immutable and safe for concurrent use.
type Builder[K any] struct {
	hash     UniversalHash[K]
	settings *settings.Settings
	cfg      *buildConfig
}

// NewBuilder validates the options. It fails before any hashing when a
// parameter is out of range.
func NewBuilder[K any](hash UniversalHash[K], opts ...BuildOption) (*Builder[K], error) {
	if hash == nil {
		return nil, rserrors.ErrNilHash
	}
	cfg := defaultBuildConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	s, err := settings.New(cfg.leafSize, cfg.averageBucketSize)
	if err != nil {
		return nil, err
	}
	return &Builder[K]{hash: hash, settings: s, cfg: cfg}, nil
}

// Generate builds a description mapping keys bijectively onto
// [0, len(keys)). Keys must be distinct. The result depends only on the
// keys, their order, the hash and the leaf and bucket sizes.
//
// Generation stops early and returns ctx.Err() when ctx is canceled.
func (b *Builder[K]) Generate(ctx context.Context, keys []K) (*Description, error) {
	desc, err := newGenerator(keys, b.hash, b.settings, b.cfg).run(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	return desc, nil
}

// NewEvaluator parses a description produced with the same parameters.
// Parsing reads only the headers; its cost does not depend on the number of
// keys.
func (b *Builder[K]) NewEvaluator(d *Description) (*Evaluator[K], error) {
	return newEvaluator(b.hash, b.settings, d.bits)
}

// NewEvaluatorFromBytes is NewEvaluator over DescriptionFromBytes(data).
func (b *Builder[K]) NewEvaluatorFromBytes(data []byte) (*Evaluator[K], error) {
	d, err := DescriptionFromBytes(data)
	if err != nil {
		return nil, err
	}
	return b.NewEvaluator(d)
}
