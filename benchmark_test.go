package csf

import (
	"path/filepath"
	"slices"
	"testing"

	"github.com/tamirms/csf/codec"
)

func benchmarkBuildN(b *testing.B, n int, c codec.Codec) {
	rng := newTestRNG(b)
	keys := generateRandomKeys(rng, n, 24)
	values := skewedValues(rng, n)
	tempDir := b.TempDir()

	b.ResetTimer()
	b.ReportAllocs()
	for range b.N {
		f, err := Build(b.Context(), slices.Values(keys), nil,
			WithValues(slices.Values(values)), WithCodec(c), WithTempDir(tempDir))
		if err != nil {
			b.Fatal(err)
		}
		b.ReportMetric(f.BitsPerKey(), "bits/key")
	}
}

func BenchmarkBuild10KHuffman(b *testing.B)  { benchmarkBuildN(b, 10000, codec.Huffman{}) }
func BenchmarkBuild100KHuffman(b *testing.B) { benchmarkBuildN(b, 100000, codec.Huffman{}) }
func BenchmarkBuild100KGamma(b *testing.B)   { benchmarkBuildN(b, 100000, codec.Gamma{}) }

func benchmarkGetN(b *testing.B, n int) {
	rng := newTestRNG(b)
	keys := generateRandomKeys(rng, n, 24)
	values := skewedValues(rng, n)

	f, err := Build(b.Context(), slices.Values(keys), nil,
		WithValues(slices.Values(values)), WithTempDir(b.TempDir()))
	if err != nil {
		b.Fatal(err)
	}
	path := filepath.Join(b.TempDir(), "bench.csf")
	if err := f.WriteFile(path); err != nil {
		b.Fatal(err)
	}
	g, err := Open[[]byte](path, nil)
	if err != nil {
		b.Fatal(err)
	}
	defer g.Close()

	b.ResetTimer()
	b.ReportAllocs()
	var sink uint64
	for i := range b.N {
		sink += g.Get(keys[i%n])
	}
	_ = sink
}

func BenchmarkGet10K(b *testing.B) { benchmarkGetN(b, 10000) }
func BenchmarkGet1M(b *testing.B)  { benchmarkGetN(b, 1000000) }
