package csf

import (
	"iter"
	"math"
	"math/rand/v2"
	"runtime"

	"github.com/tamirms/csf/chunkstore"
	"github.com/tamirms/csf/codec"
)

// BuildOption is a functional option for configuring builds.
type BuildOption func(*buildConfig)

// Progress receives construction progress. *progressbar.ProgressBar
// satisfies it. Add is called from worker goroutines and must be safe for
// concurrent use.
type Progress interface {
	ChangeMax(max int)
	Add(num int) error
}

type buildConfig struct {
	values       iter.Seq[uint64]
	tempDir      string
	store        *chunkstore.Store
	codec        codec.Codec
	workers      int
	globalSeed   uint64
	seeded       bool // true when WithGlobalSeed was given
	defaultValue uint64
	progress     Progress
}

func defaultBuildConfig() *buildConfig {
	return &buildConfig{
		codec:        codec.Huffman{},
		workers:      runtime.NumCPU(),
		defaultValue: math.MaxUint64,
	}
}

// newRNG returns the generator that draws global hash seeds. Without
// WithGlobalSeed every build draws fresh seeds.
func (c *buildConfig) newRNG() *rand.Rand {
	if !c.seeded {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(c.globalSeed, c.globalSeed^0x9E3779B97F4A7C15))
}

// WithValues sets the value of each key, in key order. Without it, the
// value of a key is its ordinal position.
func WithValues(values iter.Seq[uint64]) BuildOption {
	return func(c *buildConfig) {
		c.values = values
	}
}

// WithTempDir sets the directory for the store's bucket files.
// The directory must exist and be on a local filesystem.
func WithTempDir(dir string) BuildOption {
	return func(c *buildConfig) {
		c.tempDir = dir
	}
}

// WithStore builds from a caller-owned store. If keys are also given the
// store is reset and refilled; otherwise its contents are used as they
// are and duplicates cannot be retried. Build never closes the store.
func WithStore(s *chunkstore.Store) BuildOption {
	return func(c *buildConfig) {
		c.store = s
	}
}

// WithCodec sets the entropy codec. Default is codec.Huffman{}.
func WithCodec(cdc codec.Codec) BuildOption {
	return func(c *buildConfig) {
		c.codec = cdc
	}
}

// WithWorkers sets the number of chunk-solving goroutines.
// Default is runtime.NumCPU().
func WithWorkers(n int) BuildOption {
	return func(c *buildConfig) {
		c.workers = n
	}
}

// WithGlobalSeed makes the sequence of global hash seeds, and so the
// serialized output, reproducible.
func WithGlobalSeed(seed uint64) BuildOption {
	return func(c *buildConfig) {
		c.globalSeed = seed
		c.seeded = true
	}
}

// WithDefaultValue sets the value returned by an empty function and for
// keys detected as non-members. Default is math.MaxUint64.
func WithDefaultValue(v uint64) BuildOption {
	return func(c *buildConfig) {
		c.defaultValue = v
	}
}

// WithProgress reports one unit per solved chunk.
func WithProgress(p Progress) BuildOption {
	return func(c *buildConfig) {
		c.progress = p
	}
}
