// Package recsplit implements a minimal perfect hash function (MPHF) in the
// RecSplit style: a static key set of size n is mapped bijectively onto
// [0, n) by a compact bit string, the Description, at roughly 2 bits per key.
//
// Keys are grouped into buckets by their seed-0 hash. Each bucket is split
// recursively into small leaves, and every split or leaf stores the Golomb-Rice
// coded distance to the first hash seed that works. Buckets larger than the
// configured maximum are sent to a BDZ (3-hypergraph) fallback instead.
//
// # Basic Usage
//
// Building a description:
//
//	b, err := recsplit.NewBuilder[string](hashfunc.XXH3String{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	desc, err := b.Generate(ctx, keys)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	data := desc.Bytes()
//
// Querying:
//
//	eval, err := b.NewEvaluatorFromBytes(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Key index: %d\n", eval.Evaluate("mykey"))
//
// The evaluator must be built with the same hash family, leaf size and
// average bucket size as the description. Keys outside the original set
// still map into [0, n) but the result is meaningless.
//
// # Package Structure
//
// The implementation is organized as follows:
//
//   - Public API: builder.go (NewBuilder, Generate), evaluator.go (Evaluate, Stats)
//   - Configuration: builder_options.go (BuildOption, With* functions)
//   - Serialization: description.go (Bytes, DescriptionFromBytes)
//   - Construction: generator.go (bucketing, parallel encoding, assembly), bucket.go (split search)
//   - Hash families: hash.go (UniversalHash), hashfunc/ (xxh3, xxhash, murmur3)
//   - Building blocks: internal/bitbuf (bit codes), internal/settings (split strategy),
//     internal/rank, internal/monotone, internal/bdz (fallback)
package recsplit
