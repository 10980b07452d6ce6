package csf

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math/rand/v2"

	"github.com/tamirms/csf/chunkstore"
	csferrors "github.com/tamirms/csf/errors"
	"github.com/tamirms/csf/internal/bits"
	"k8s.io/klog/v2"
)

const (
	// contextCheckInterval is how often to check for context cancellation while filling the store.
	contextCheckInterval = 10000

	// maxAttempts bounds global reseeding after duplicate triples.
	maxAttempts = 4

	// maxKeys is the largest supported key set. Every key adds at least
	// one variable, and variable offsets are 54 bits wide.
	maxKeys = uint64(1) << seedShift
)

// Build constructs a compressed static function over keys.
//
// Values come from WithValues, in key order, or default to the ordinal
// position of each key. transform may be nil for []byte, string and
// uint64 keys. keys may be nil when a pre-filled store is given through
// WithStore.
//
// Two keys hashing to the same triple restart construction with a new
// global seed, up to 4 attempts in total, so keys and values must be
// iterable more than once. Genuine duplicate keys fail with
// ErrDuplicateKey.
//
// Usage:
//
//	f, err := csf.Build(ctx, slices.Values(keys), csf.Strings{},
//	    csf.WithValues(slices.Values(values)), csf.WithCodec(codec.Huffman{}))
//	if err != nil { return err }
//	v := f.Get("mykey")
func Build[K any](ctx context.Context, keys iter.Seq[K], transform Transform[K], opts ...BuildOption) (*Function[K], error) {
	cfg := defaultBuildConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if keys == nil && cfg.store == nil {
		return nil, csferrors.ErrNoKeys
	}
	if transform == nil {
		var err error
		if transform, err = defaultTransform[K](); err != nil {
			return nil, err
		}
	}
	if cfg.workers < 0 {
		return nil, csferrors.ErrInvalidWorkers
	}
	if cfg.workers == 0 {
		cfg.workers = defaultBuildConfig().workers
	}
	if cfg.codec == nil {
		return nil, csferrors.ErrUnknownCodec
	}

	b := &builder[K]{
		cfg:       cfg,
		keys:      keys,
		transform: transform,
		store:     cfg.store,
		rng:       cfg.newRNG(),
	}
	if b.store == nil {
		s, err := chunkstore.New(cfg.tempDir, b.rng.Uint64())
		if err != nil {
			return nil, fmt.Errorf("create chunk store: %w", err)
		}
		b.store = s
		defer s.Close()
	}
	return b.run(ctx)
}

// builder carries the state of one Build call across attempts.
type builder[K any] struct {
	cfg       *buildConfig
	keys      iter.Seq[K]
	transform Transform[K]
	store     *chunkstore.Store
	rng       *rand.Rand
}

// run fills the store and builds, reseeding after duplicate triples.
// A retry starts only after solveChunks has waited for all workers of the
// failed attempt.
func (b *builder[K]) run(ctx context.Context) (*Function[K], error) {
	checked := b.keys != nil
	for attempt := 1; ; attempt++ {
		if checked {
			if err := b.fill(ctx, b.rng.Uint64()); err != nil {
				return nil, err
			}
		}

		f, err := b.build(ctx)
		if err == nil {
			f.stats.Attempts = attempt
			return f, nil
		}
		if !errors.Is(err, csferrors.ErrDuplicateKey) {
			return nil, err
		}
		if !checked {
			return nil, fmt.Errorf("%w: %w", csferrors.ErrUncheckedStore, err)
		}
		if attempt == maxAttempts {
			return nil, fmt.Errorf("%d attempts: %w", attempt, err)
		}
		klog.Warningf("csf: duplicate triple on attempt %d/%d, recomputing triples: %v", attempt, maxAttempts, err)
	}
}

// fill resets the store to seed and adds every key with its value.
func (b *builder[K]) fill(ctx context.Context, seed uint64) error {
	if err := b.store.Reset(seed); err != nil {
		return fmt.Errorf("reset chunk store: %w", err)
	}

	var next func() (uint64, bool)
	if b.cfg.values != nil {
		var stop func()
		next, stop = iter.Pull(b.cfg.values)
		defer stop()
	}

	var buf []byte
	var ordinal uint64
	for key := range b.keys {
		if ordinal%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if ordinal >= maxKeys {
			return csferrors.ErrTooManyKeys
		}
		value := ordinal
		if next != nil {
			v, ok := next()
			if !ok {
				return fmt.Errorf("%w: values end after %d keys", csferrors.ErrValueCountMismatch, ordinal)
			}
			value = v
		}
		buf = b.transform.AppendBytes(buf[:0], key)
		if err := b.store.Add(buf, value); err != nil {
			return err
		}
		ordinal++
	}
	if next != nil {
		if _, ok := next(); ok {
			return fmt.Errorf("%w: more values than %d keys", csferrors.ErrValueCountMismatch, ordinal)
		}
	}
	klog.V(2).Infof("csf: added %d keys with seed %#x", ordinal, seed)
	return nil
}

// build runs one construction attempt over the current store contents.
func (b *builder[K]) build(ctx context.Context) (*Function[K], error) {
	n := b.store.Size()
	f := &Function[K]{
		n:            n,
		globalSeed:   b.store.Seed(),
		defaultValue: b.cfg.defaultValue,
		transform:    b.transform,
		codecID:      b.cfg.codec.ID(),
	}
	if n == 0 {
		return f, nil
	}
	if n > maxKeys {
		return nil, csferrors.ErrTooManyKeys
	}

	coder, err := b.cfg.codec.NewCoder(b.store.ValueFrequencies())
	if err != nil {
		return nil, fmt.Errorf("build coder: %w", err)
	}
	f.w = coder.MaxCodewordLength()
	f.decoder = coder.Decoder()

	log2NumChunks := max(0, bits.Msb(n>>log2ChunkSize))
	f.chunkShift = uint(b.store.Log2Chunks(log2NumChunks))
	numChunks := b.store.NumChunks()
	klog.V(2).Infof("csf: %d keys, %d chunks, max codeword length %d", n, numChunks, f.w)

	if p := b.cfg.progress; p != nil {
		p.ChangeMax(numChunks)
	}
	results, stats, err := solveChunks(ctx, b.store, coder, b.cfg.workers, b.cfg.progress)
	if err != nil {
		return nil, err
	}

	data, table, err := assemble(results)
	if err != nil {
		return nil, err
	}
	f.data = data.Words()
	f.dataBits = data.Len()
	f.offsetSeed = make([]uint64, len(table))
	for i, e := range table {
		f.offsetSeed[i] = uint64(e)
	}
	f.stats = stats

	logStats(&stats, f.BitsPerKey())
	return f, nil
}

func logStats(s *BuildStats, bitsPerKey float64) {
	if !klog.V(1).Enabled() {
		return
	}
	klog.Infof("csf: unsolvable systems: %d/%d (%.2f%%)", s.Unsolvable, s.Chunks, 100*float64(s.Unsolvable)/float64(max(1, s.Chunks)))
	klog.Infof("csf: mean variables peeled for solved systems: %.2f%%", 100*s.PeeledFraction())
	if s.VariablesUnsolvable > 0 {
		klog.Infof("csf: mean variables peeled for unsolved systems: %.2f%%", 100*float64(s.PeeledUnsolvable)/float64(s.VariablesUnsolvable))
	}
	klog.Infof("csf: %d equations, %d left for dense elimination", s.Equations, s.DenseEquations)
	klog.Infof("csf: actual bit cost per element: %.3f", bitsPerKey)
}
