// Bench measures recsplit build throughput, description size, query latency
// and memory usage. The description is written to a memory-mapped scratch
// file and evaluated in place.
//
// Usage:
//
//	go run ./cmd/bench -keys 10000000 -leaf 8 -bucket 100 -hash xxh3
//
// Every option can also be set from the environment (KEYS, LEAF, ...).
package main

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	mrand "math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fulldump/goconfig"
	"go.uber.org/zap"

	"github.com/tamirms/recsplit"
	"github.com/tamirms/recsplit/hashfunc"
)

type Config struct {
	Keys    int    `usage:"number of keys"`
	KeySize int    `usage:"key size in bytes"`
	Seed    int64  `usage:"random seed for key generation"`
	Leaf    int    `usage:"leaf size"`
	Bucket  int    `usage:"average bucket size"`
	Workers int    `usage:"number of parallel workers (0 = GOMAXPROCS)"`
	Chunk   int    `usage:"max keys per worker-pool round"`
	Hash    string `usage:"hash family: xxh3 | xxhash | murmur3"`
	Dir     string `usage:"scratch directory (default: system temp dir)"`
	Queries int    `usage:"number of timed queries"`
	Verbose bool   `usage:"development logging"`
}

func defaultConfig() Config {
	return Config{
		Keys:    10_000_000,
		KeySize: 32,
		Seed:    0x1234,
		Leaf:    8,
		Bucket:  100,
		Chunk:   1 << 20,
		Hash:    "xxh3",
		Queries: 1_000_000,
	}
}

// getMaxRSS returns the maximum resident set size in bytes.
func getMaxRSS() uint64 {
	var rusage syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &rusage); err != nil {
		return 0
	}
	// On macOS, MaxRss is in bytes. On Linux, it's in kilobytes.
	maxRSS := uint64(rusage.Maxrss)
	if runtime.GOOS == "linux" {
		maxRSS *= 1024
	}
	return maxRSS
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	return cfg.Build()
}

func main() {
	c := defaultConfig()
	goconfig.Read(&c)

	logger, err := newLogger(c.Verbose)
	if err != nil {
		fmt.Printf("logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(context.Background(), c, logger); err != nil {
		logger.Error("bench failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, c Config, logger *zap.Logger) error {
	if c.Keys <= 0 || c.KeySize < 8 {
		return errors.New("need keys > 0 and keysize >= 8")
	}
	hash, ok := hashfunc.ByName(c.Hash)
	if !ok {
		return fmt.Errorf("unknown hash %q", c.Hash)
	}

	opts := []recsplit.BuildOption{
		recsplit.WithLeafSize(c.Leaf),
		recsplit.WithAverageBucketSize(c.Bucket),
		recsplit.WithMaxChunkSize(c.Chunk),
		recsplit.WithLogger(logger),
	}
	if c.Workers > 0 {
		opts = append(opts, recsplit.WithWorkers(c.Workers))
	}
	builder, err := recsplit.NewBuilder[[]byte](recsplit.HashFunc[[]byte](hash), opts...)
	if err != nil {
		return err
	}

	logger.Info("generating keys", zap.Int("keys", c.Keys), zap.Int("key_size", c.KeySize))
	keys := generateKeys(c.Keys, c.KeySize, uint64(c.Seed))

	runtime.GC()
	time.Sleep(50 * time.Millisecond)
	var baseline runtime.MemStats
	runtime.ReadMemStats(&baseline)
	baselineRSS := getMaxRSS()
	peakAlloc, peakRSS, stop := sampleMemory(baseline.Alloc, baselineRSS)

	buildStart := time.Now()
	desc, err := builder.Generate(ctx, keys)
	buildDuration := time.Since(buildStart)
	stop()
	if err != nil {
		return err
	}

	dir := c.Dir
	if dir == "" {
		if dir, err = os.MkdirTemp("", "recsplit-bench-"); err != nil {
			return err
		}
		defer func() { _ = os.RemoveAll(dir) }()
	}
	mm, closeMap, err := writeMapped(filepath.Join(dir, "description.bin"), desc)
	if err != nil {
		return err
	}
	defer closeMap()
	adviseRandom(mm)

	eval, err := builder.NewEvaluatorFromBytes(mm)
	if err != nil {
		return err
	}
	if err := verify(eval, keys); err != nil {
		return err
	}

	queryOrder := mrand.Perm(len(keys))
	for i := 0; i < 10000; i++ {
		_ = eval.Evaluate(keys[queryOrder[i%len(keys)]])
	}
	queryStart := time.Now()
	var sink uint64
	for i := 0; i < c.Queries; i++ {
		sink += eval.Evaluate(keys[queryOrder[i%len(keys)]])
	}
	queryDuration := time.Since(queryStart)
	_ = sink

	stats := eval.Stats()
	avgLatency := float64(queryDuration.Nanoseconds()) / float64(max(c.Queries, 1))

	fmt.Printf("\n")
	fmt.Printf("╔═════════════════════╦══════════════════════╗\n")
	fmt.Printf("║ Leaf / bucket       ║ %4d / %-13d ║\n", c.Leaf, c.Bucket)
	fmt.Printf("║ Hash                ║ %-20s ║\n", c.Hash)
	fmt.Printf("╠═════════════════════╬══════════════════════╣\n")
	fmt.Printf("║ Bits per key        ║ %8.4f bits/key   ║\n", stats.BitsPerKey)
	fmt.Printf("║ Description size    ║ %10d bytes     ║\n", len(mm))
	fmt.Printf("║ Fallback keys       ║ %10d           ║\n", stats.AlternativeKeys)
	fmt.Printf("║ Query latency       ║ %8.1f ns         ║\n", avgLatency)
	fmt.Printf("║ Build time          ║ %8.2f sec        ║\n", buildDuration.Seconds())
	fmt.Printf("║ Build throughput    ║ %8.2f M/sec      ║\n", float64(len(keys))/buildDuration.Seconds()/1_000_000)
	fmt.Printf("║ Peak heap memory    ║ %8.1f MB         ║\n", float64(peakAlloc()-baseline.Alloc)/1_000_000)
	fmt.Printf("║ Peak RSS memory     ║ %8.1f MB         ║\n", float64(peakRSS()-baselineRSS)/1_000_000)
	fmt.Printf("║ Checksum            ║ %016x     ║\n", xxhash.Sum64(mm))
	fmt.Printf("╚═════════════════════╩══════════════════════╝\n")
	return nil
}

func generateKeys(n, size int, seed uint64) [][]byte {
	rng := mrand.New(mrand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
	backing := make([]byte, n*size)
	keys := make([][]byte, n)
	for i := range keys {
		k := backing[i*size : (i+1)*size : (i+1)*size]
		// The leading 8 bytes hold the index, so keys are distinct.
		binary.LittleEndian.PutUint64(k, uint64(i))
		for j := 8; j < size; j += 8 {
			var w [8]byte
			binary.LittleEndian.PutUint64(w[:], rng.Uint64())
			copy(k[j:], w[:])
		}
		keys[i] = k
	}
	return keys
}
