// Bench measures compressed static function build time, query latency,
// space and peak memory.
//
// Usage:
//
//	go run ./cmd/bench -keys 10000000 -codec huffman -dist geometric
//
// Flags:
//
//	-keys      Number of keys (default: 10,000,000)
//	-codec     Codec: unary, binary, gamma, huffman or llhuffman (default: huffman)
//	-limit     Decoding table limit for llhuffman (default: 20)
//	-dist      Value distribution: geometric, uniform or constant (default: geometric)
//	-symbols   Number of distinct values for uniform (default: 256)
//	-workers   Number of solver workers, 0 for all CPUs (default: 0)
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"math"
	mrand "math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"runtime/metrics"
	"runtime/pprof"
	"slices"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spaolacci/murmur3"
	"github.com/tamirms/csf"
	"github.com/tamirms/csf/codec"
	"github.com/tamirms/csf/internal/triple"
)

// getMaxRSS returns the peak resident set size in bytes.
func getMaxRSS() uint64 {
	var rusage syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &rusage); err != nil {
		return 0
	}
	// MaxRss is in bytes on macOS and in kilobytes on Linux.
	maxRSS := uint64(rusage.Maxrss)
	if runtime.GOOS == "linux" {
		maxRSS *= 1024
	}
	return maxRSS
}

// peakSampler records peak heap and RSS every 10ms. runtime/metrics avoids
// the stop-the-world pause of ReadMemStats.
type peakSampler struct {
	heap atomic.Uint64
	rss  atomic.Uint64
	done chan struct{}
}

func startSampler() *peakSampler {
	s := &peakSampler{done: make(chan struct{})}
	go func() {
		samples := []metrics.Sample{{Name: "/memory/classes/heap/objects:bytes"}}
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				metrics.Read(samples)
				storeMax(&s.heap, samples[0].Value.Uint64())
				storeMax(&s.rss, getMaxRSS())
			}
		}
	}()
	return s
}

func (s *peakSampler) stop() { close(s.done) }

func storeMax(a *atomic.Uint64, v uint64) {
	for {
		old := a.Load()
		if v <= old || a.CompareAndSwap(old, v) {
			return
		}
	}
}

// generateValues draws one value per key from dist.
func generateValues(n int, dist string, symbols int) ([]uint64, error) {
	values := make([]uint64, n)
	switch dist {
	case "geometric":
		for i := range values {
			v := uint64(0)
			for mrand.IntN(2) == 0 {
				v++
			}
			values[i] = v
		}
	case "uniform":
		for i := range values {
			values[i] = mrand.Uint64N(uint64(symbols))
		}
	case "constant":
	default:
		return nil, fmt.Errorf("unknown distribution %q", dist)
	}
	return values, nil
}

// entropy returns the empirical entropy of values in bits per key.
func entropy(values []uint64) float64 {
	freq := make(map[uint64]int)
	for _, v := range values {
		freq[v]++
	}
	n := float64(len(values))
	h := 0.0
	for _, f := range freq {
		p := float64(f) / n
		h -= p * math.Log2(p)
	}
	return h
}

func main() {
	keysFlag := flag.Int("keys", 10_000_000, "number of keys")
	codecFlag := flag.String("codec", "huffman", "codec: unary, binary, gamma, huffman or llhuffman")
	limitFlag := flag.Int("limit", codec.DefaultLimit, "decoding table limit for llhuffman")
	distFlag := flag.String("dist", "geometric", "value distribution: geometric, uniform or constant")
	symbolsFlag := flag.Int("symbols", 256, "number of distinct values for uniform")
	workersFlag := flag.Int("workers", 0, "number of solver workers, 0 for all CPUs")
	cpuprofile := flag.String("cpuprofile", "", "write cpu profile to file (build phase only)")
	memprofile := flag.String("memprofile", "", "write memory profile to file (build phase only)")
	flag.Parse()

	numKeys := *keysFlag
	cdc, err := codec.ByName(*codecFlag, *limitFlag)
	if err != nil {
		fmt.Printf("Invalid codec: %v\n", err)
		return
	}

	fmt.Println("Generating keys...")
	keys := make([][32]byte, numKeys)
	for i := range keys {
		_, _ = rand.Read(keys[i][:])
	}
	values, err := generateValues(numKeys, *distFlag, *symbolsFlag)
	if err != nil {
		fmt.Println(err)
		return
	}

	// murmur3 is a reference point for the cost of hashing alone.
	fmt.Println("Hashing keys...")
	hashStart := time.Now()
	for i := range keys {
		triple.Hash(keys[i][:], 0x1234)
	}
	hashDuration := time.Since(hashStart)
	murmurStart := time.Now()
	for i := range keys {
		murmur3.Sum128WithSeed(keys[i][:], 0x1234)
	}
	murmurDuration := time.Since(murmurStart)

	tmpDir, err := os.MkdirTemp("", "csf-bench-")
	if err != nil {
		fmt.Printf("Failed to create temp dir: %v\n", err)
		return
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()
	path := filepath.Join(tmpDir, "bench.csf")

	runtime.GC()
	time.Sleep(50 * time.Millisecond)
	var baseline runtime.MemStats
	runtime.ReadMemStats(&baseline)
	baselineRSS := getMaxRSS()
	sampler := startSampler()
	sampler.heap.Store(baseline.Alloc)
	sampler.rss.Store(baselineRSS)

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			fmt.Printf("could not create CPU profile: %v\n", err)
			return
		}
		defer func() { _ = f.Close() }()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Printf("could not start CPU profile: %v\n", err)
			return
		}
	}

	fmt.Printf("Building function (%s)...\n", cdc.ID())
	buildStart := time.Now()
	keySeq := func(yield func([]byte) bool) {
		for i := range keys {
			if !yield(keys[i][:]) {
				return
			}
		}
	}
	f, err := csf.Build(context.Background(), keySeq, csf.Bytes{},
		csf.WithValues(slices.Values(values)),
		csf.WithCodec(cdc),
		csf.WithWorkers(*workersFlag),
		csf.WithTempDir(tmpDir))
	if err == nil {
		err = f.WriteFile(path)
	}
	buildDuration := time.Since(buildStart)

	if *cpuprofile != "" {
		pprof.StopCPUProfile()
	}
	if *memprofile != "" {
		mf, err := os.Create(*memprofile)
		if err != nil {
			fmt.Printf("could not create memory profile: %v\n", err)
		} else {
			runtime.GC()
			if err := pprof.WriteHeapProfile(mf); err != nil {
				fmt.Printf("could not write memory profile: %v\n", err)
			}
			_ = mf.Close()
		}
	}

	sampler.stop()
	var final runtime.MemStats
	runtime.ReadMemStats(&final)
	storeMax(&sampler.heap, final.Alloc)
	storeMax(&sampler.rss, getMaxRSS())
	peakHeapMem := sampler.heap.Load() - baseline.Alloc
	peakRSSMem := sampler.rss.Load() - baselineRSS

	if err != nil {
		fmt.Printf("Build failed: %v\n", err)
		return
	}
	stats := f.BuildStats()
	bitsPerKey := f.BitsPerKey()
	h := entropy(values)

	g, err := csf.Open[[]byte](path, nil)
	if err != nil {
		fmt.Printf("Open failed: %v\n", err)
		return
	}
	defer func() { _ = g.Close() }()

	queryOrder := mrand.Perm(numKeys)

	fmt.Println("Checking values...")
	for i, k := range keys {
		if got := g.Get(k[:]); got != values[i] {
			fmt.Printf("Get(key %d) = %d, want %d\n", i, got, values[i])
			return
		}
	}

	fmt.Println("Benchmarking queries...")
	numQueries := 1_000_000
	var sink uint64
	queryStart := time.Now()
	for i := range numQueries {
		sink += g.Get(keys[queryOrder[i%numKeys]][:])
	}
	queryDuration := time.Since(queryStart)
	_ = sink
	avgLatency := float64(queryDuration.Nanoseconds()) / float64(numQueries)

	fmt.Printf("\n")
	fmt.Printf("╔═════════════════════╦════════════════╦══════════════════╗\n")
	fmt.Printf("║ Codec: %-13s║ Dist: %-8s ║                  ║\n", cdc.ID(), *distFlag)
	fmt.Printf("╠═════════════════════╬════════════════╬══════════════════╣\n")
	fmt.Printf("║ Metric              ║ Value          ║ Reference        ║\n")
	fmt.Printf("╠═════════════════════╬════════════════╬══════════════════╣\n")
	fmt.Printf("║ Bits per key        ║ %6.3f bits/key║ H0 %6.3f        ║\n", bitsPerKey, h)
	fmt.Printf("║ Max codeword        ║ %6d bits    ║ -                ║\n", f.MaxCodewordLength())
	fmt.Printf("║ File size           ║ %-15s║ -                ║\n", humanize.Bytes(f.NumBits()/8))
	fmt.Printf("║ Chunks              ║ %-15s║ %6d retried   ║\n", humanize.Comma(int64(stats.Chunks)), stats.Unsolvable)
	fmt.Printf("║ Peeled              ║ %6.2f %%       ║ -                ║\n", 100*stats.PeeledFraction())
	fmt.Printf("║ Query latency       ║ %6.1f ns      ║ -                ║\n", avgLatency)
	fmt.Printf("║ Build time          ║ %6.2f sec     ║ -                ║\n", buildDuration.Seconds())
	fmt.Printf("║ Build throughput    ║ %6.2f M/sec   ║ -                ║\n", float64(numKeys)/buildDuration.Seconds()/1_000_000)
	fmt.Printf("║ Hash time           ║ %6.2f sec     ║ murmur3 %5.2f s  ║\n", hashDuration.Seconds(), murmurDuration.Seconds())
	fmt.Printf("║ Peak heap memory    ║ %-15s║ -                ║\n", humanize.Bytes(peakHeapMem))
	fmt.Printf("║ Peak RSS memory     ║ %-15s║ -                ║\n", humanize.Bytes(peakRSSMem))
	fmt.Printf("╚═════════════════════╩════════════════╩══════════════════╝\n")
}
