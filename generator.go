package recsplit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	rserrors "github.com/tamirms/recsplit/errors"
	"github.com/tamirms/recsplit/internal/bdz"
	"github.com/tamirms/recsplit/internal/bitbuf"
	"github.com/tamirms/recsplit/internal/monotone"
	"github.com/tamirms/recsplit/internal/settings"
)

// maxOverlap is the longest run of bits a bucket may share with the tail
// of the previous one.
const maxOverlap = 16

// generator holds the state of one Generate call.
type generator[K any] struct {
	keys     []K
	hash     UniversalHash[K]
	settings *settings.Settings
	cfg      *buildConfig
	logger   *zap.Logger

	bucketCount uint64
	hashes      []uint64 // seed-0 hash per key
	order       []uint32 // key handles grouped by bucket
	bucketStart []uint32 // bucket b owns order[bucketStart[b]:bucketStart[b+1]]
	results     []bucketResult
	maxBits     uint64 // per-bucket encoding limit
	encoders    sync.Pool
}

func newGenerator[K any](keys []K, hash UniversalHash[K], s *settings.Settings, cfg *buildConfig) *generator[K] {
	g := &generator[K]{
		keys:     keys,
		hash:     hash,
		settings: s,
		cfg:      cfg,
		logger:   cfg.logger,
		maxBits:  s.MaxBucketBits(),
	}
	g.encoders.New = func() any {
		return &bucketEncoder[K]{keys: keys, hash: hash, settings: s, maxBits: g.maxBits}
	}
	return g
}

func (g *generator[K]) run(ctx context.Context) (*Description, error) {
	start := time.Now()
	if uint64(len(g.keys)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: got %d", rserrors.ErrTooManyKeys, len(g.keys))
	}
	g.bucketCount = g.settings.BucketCount(uint64(len(g.keys)))

	if err := g.hashKeys(ctx); err != nil {
		return nil, err
	}
	g.groupByBucket()
	if err := g.encodeBuckets(ctx); err != nil {
		return nil, err
	}

	var altKeys []K
	altBuckets := 0
	for b, r := range g.results {
		if !r.alternative {
			continue
		}
		altBuckets++
		for _, k := range g.order[g.bucketStart[b]:g.bucketStart[b+1]] {
			altKeys = append(altKeys, g.keys[k])
		}
	}

	desc, err := g.assemble(altKeys)
	if err != nil {
		return nil, err
	}

	bitsPerKey := 0.0
	if len(g.keys) > 0 {
		bitsPerKey = float64(desc.BitLen()) / float64(len(g.keys))
	}
	g.logger.Info("recsplit built",
		zap.Int("keys", len(g.keys)),
		zap.Uint64("buckets", g.bucketCount),
		zap.Int("alternativeBuckets", altBuckets),
		zap.Int("alternativeKeys", len(altKeys)),
		zap.Uint64("bits", desc.BitLen()),
		zap.Float64("bitsPerKey", bitsPerKey),
		zap.Duration("elapsed", time.Since(start)))
	return desc, nil
}

// hashKeys computes every key's seed-0 hash in parallel chunks.
func (g *generator[K]) hashKeys(ctx context.Context) error {
	g.hashes = make([]uint64, len(g.keys))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.workers)
	for lo := 0; lo < len(g.keys); lo += g.cfg.maxChunkSize {
		hi := min(lo+g.cfg.maxChunkSize, len(g.keys))
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				g.hashes[i] = g.hash.Hash(g.keys[i], 0)
			}
			return nil
		})
	}
	return eg.Wait()
}

// groupByBucket counting-sorts key handles by bucket.
func (g *generator[K]) groupByBucket() {
	g.bucketStart = make([]uint32, g.bucketCount+1)
	for _, h := range g.hashes {
		g.bucketStart[settings.BucketOf(h, g.bucketCount)+1]++
	}
	for b := uint64(1); b <= g.bucketCount; b++ {
		g.bucketStart[b] += g.bucketStart[b-1]
	}
	next := make([]uint32, g.bucketCount)
	copy(next, g.bucketStart)
	g.order = make([]uint32, len(g.keys))
	for i, h := range g.hashes {
		b := settings.BucketOf(h, g.bucketCount)
		g.order[next[b]] = uint32(i)
		next[b]++
	}
}

// encodeBuckets runs the bucket encoders on the worker pool, one chunk of
// buckets at a time. The pool is joined after every chunk.
func (g *generator[K]) encodeBuckets(ctx context.Context) error {
	g.results = make([]bucketResult, g.bucketCount)
	for lo := uint64(0); lo < g.bucketCount; {
		hi := lo + 1
		for hi < g.bucketCount && int(g.bucketStart[hi+1]-g.bucketStart[lo]) <= g.cfg.maxChunkSize {
			hi++
		}
		if err := g.encodeChunk(ctx, lo, hi); err != nil {
			return err
		}
		g.logger.Debug("encoded bucket chunk",
			zap.Uint64("firstBucket", lo),
			zap.Uint64("lastBucket", hi-1),
			zap.Uint32("keys", g.bucketStart[hi]-g.bucketStart[lo]))
		lo = hi
	}
	return nil
}

func (g *generator[K]) encodeChunk(ctx context.Context, lo, hi uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.workers)
	for b := lo; b < hi; b++ {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			enc := g.encoders.Get().(*bucketEncoder[K])
			defer g.encoders.Put(enc)
			res, err := enc.encodeBucket(b, g.order[g.bucketStart[b]:g.bucketStart[b+1]], g.hashes)
			if err != nil {
				return err
			}
			g.results[b] = res
			return nil
		})
	}
	return eg.Wait()
}

// assemble lays out the final description: header, offset and start
// lists, the compacted bucket encodings and the optional fallback block.
func (g *generator[K]) assemble(altKeys []K) (*Description, error) {
	offsets := make([]uint64, g.bucketCount+1)
	starts := make([]uint64, g.bucketCount+1)
	data := bitbuf.NewWriter(uint64(len(g.keys)) * 2)

	var prevLen uint64
	for b, r := range g.results {
		count := uint64(r.count)
		if r.alternative {
			count = 0
		}
		offsets[b+1] = offsets[b] + count

		k := overlap(data.Bits(), r.bits, min(maxOverlap, prevLen, r.bits.Size()))
		starts[b] = data.Position() - k
		data.WriteRange(r.bits, k, r.bits.Size())
		prevLen = r.bits.Size()
	}
	starts[g.bucketCount] = data.Position()

	if got := offsets[g.bucketCount] + uint64(len(altKeys)); got != uint64(len(g.keys)) {
		return nil, fmt.Errorf("%w: %d primary + %d alternative keys, want %d",
			rserrors.ErrBucketCountMismatch, offsets[g.bucketCount], len(altKeys), len(g.keys))
	}

	minOffsetDiff := subtractTrend(offsets)
	minStartDiff := subtractTrend(starts)

	out := bitbuf.NewWriter(data.Position() + uint64(len(g.keys))/8 + 1024)
	out.WriteEliasDelta(uint64(len(g.keys)) + 1)
	if len(altKeys) > 0 {
		out.WriteBit(1)
	} else {
		out.WriteBit(0)
	}
	out.WriteEliasDelta(minOffsetDiff + 1)
	out.WriteEliasDelta(minStartDiff + 1)
	if _, err := monotone.Generate(offsets, out); err != nil {
		return nil, fmt.Errorf("offset list: %w", err)
	}
	if _, err := monotone.Generate(starts, out); err != nil {
		return nil, fmt.Errorf("start list: %w", err)
	}
	out.Write(data.Bits())

	if len(altKeys) > 0 {
		if _, err := bdz.Generate(altKeys, g.hash.Hash, out, g.logger); err != nil {
			return nil, fmt.Errorf("fallback: %w", err)
		}
	}
	return &Description{bits: out.Bits()}, nil
}

// overlap returns the largest k <= limit such that the last k bits of tail
// equal the first k bits of next.
func overlap(tail, next bitbuf.Bits, limit uint64) uint64 {
	for k := limit; k > 0; k-- {
		if tail.ReadNumber(tail.Size()-k, int(k)) == next.ReadNumber(0, int(k)) {
			return k
		}
	}
	return 0
}

// subtractTrend replaces values[i] by values[i] - i*d, where d is the
// smallest step, and returns d.
func subtractTrend(values []uint64) uint64 {
	d := uint64(math.MaxUint64)
	for i := 1; i < len(values); i++ {
		d = min(d, values[i]-values[i-1])
	}
	if len(values) < 2 {
		d = 0
	}
	for i := range values {
		values[i] -= uint64(i) * d
	}
	return d
}
