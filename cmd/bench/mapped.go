package main

import (
	"errors"
	"fmt"
	"os"
	"runtime/metrics"
	"sync/atomic"
	"time"

	"github.com/edsrzf/mmap-go"

	"github.com/tamirms/recsplit"
)

// writeMapped stores desc in a fresh file at path and returns a read-only
// mapping of it. The file is preallocated so a full disk fails here rather
// than as SIGBUS on first touch.
func writeMapped(path string, desc *recsplit.Description) (mmap.MMap, func(), error) {
	size := desc.EncodedLen()
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = f.Close() }()
	if size == 0 {
		return mmap.MMap{}, func() {}, nil
	}
	if err := fallocateFile(f, int64(size)); err != nil {
		return nil, nil, fmt.Errorf("preallocate: %w", err)
	}

	w, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		return nil, nil, err
	}
	_, err = desc.PutBytes(w)
	if err == nil {
		err = w.Flush()
	}
	if err = errors.Join(err, w.Unmap()); err != nil {
		return nil, nil, err
	}

	r, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, nil, err
	}
	return r, func() { _ = r.Unmap() }, nil
}

// verify checks that eval is a bijection over keys.
func verify(eval *recsplit.Evaluator[[]byte], keys [][]byte) error {
	seen := make([]uint64, (len(keys)+63)/64)
	for i, k := range keys {
		v := eval.Evaluate(k)
		if v >= uint64(len(keys)) {
			return fmt.Errorf("key %d: index %d out of range", i, v)
		}
		if seen[v/64]&(1<<(v%64)) != 0 {
			return fmt.Errorf("key %d: index %d assigned twice", i, v)
		}
		seen[v/64] |= 1 << (v % 64)
	}
	return nil
}

// sampleMemory tracks peak heap and RSS every 10ms until stop is called.
// runtime/metrics avoids the stop-the-world pauses of ReadMemStats.
func sampleMemory(heap0, rss0 uint64) (peakHeap, peakRSS func() uint64, stop func()) {
	var heap, rss atomic.Uint64
	heap.Store(heap0)
	rss.Store(rss0)
	raise := func(v *atomic.Uint64, x uint64) {
		for {
			old := v.Load()
			if x <= old || v.CompareAndSwap(old, x) {
				return
			}
		}
	}

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		samples := []metrics.Sample{{Name: "/memory/classes/heap/objects:bytes"}}
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				metrics.Read(samples)
				raise(&heap, samples[0].Value.Uint64())
				raise(&rss, getMaxRSS())
			}
		}
	}()

	stop = func() {
		close(done)
		<-finished
		raise(&rss, getMaxRSS())
	}
	return heap.Load, rss.Load, stop
}
