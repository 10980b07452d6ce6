package main

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math/rand/v2"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/tamirms/csf"
	"github.com/tamirms/csf/chunkstore"
	"github.com/tamirms/csf/codec"
	csferrors "github.com/tamirms/csf/errors"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

// keyMode selects how input lines become keys.
type keyMode int

const (
	keyModeUTF8 keyMode = iota
	keyModeISO
	keyModeBytes
)

func keyModeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "iso",
			Usage: "use ISO-8859-1 coding internally (one byte per character, characters above U+00FF become '?')",
		},
		&cli.BoolFlag{
			Name:  "byte-array",
			Usage: "treat lines as byte arrays and hash them as they are",
		},
	}
}

func keyModeOf(c *cli.Context) (keyMode, error) {
	switch {
	case c.Bool("iso") && c.Bool("byte-array"):
		return 0, errors.New("--iso and --byte-array are mutually exclusive")
	case c.Bool("iso"):
		return keyModeISO, nil
	case c.Bool("byte-array"):
		return keyModeBytes, nil
	}
	return keyModeUTF8, nil
}

func newCmdBuild() *cli.Command {
	var (
		valuesPath string
		codecName  string
		limit      int
		tempDir    string
		workers    int
		seed       uint64
		defaultVal uint64
		zipped     bool
		zstdInput  bool
		verify     bool
	)
	return &cli.Command{
		Name:        "build",
		Usage:       "build a function from a file of keys, one per line",
		Description: "Builds a compressed static function mapping each line of INPUT to a value. Values are read as big-endian 64-bit integers from --values, or default to the ordinal position of each key. INPUT defaults to standard input.",
		ArgsUsage:   "<output> [<input>]",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:        "values",
				Usage:       "binary file of big-endian 64-bit values, one per key",
				Destination: &valuesPath,
			},
			&cli.StringFlag{
				Name:        "codec",
				Usage:       "value codec: UNARY, BINARY, GAMMA, HUFFMAN or LLHUFFMAN",
				Value:       "HUFFMAN",
				Destination: &codecName,
			},
			&cli.IntFlag{
				Name:        "limit",
				Usage:       "decoding table size for LLHUFFMAN",
				Value:       codec.DefaultLimit,
				Destination: &limit,
			},
			&cli.StringFlag{
				Name:        "temp-dir",
				Usage:       "directory for temporary bucket files",
				Destination: &tempDir,
			},
			&cli.IntFlag{
				Name:        "workers",
				Usage:       "number of solver workers, 0 for all CPUs",
				Destination: &workers,
			},
			&cli.Uint64Flag{
				Name:        "seed",
				Usage:       "seed for reproducible builds",
				Destination: &seed,
			},
			&cli.Uint64Flag{
				Name:        "default",
				Usage:       "value returned for keys recognized as outside the key set",
				Value:       ^uint64(0),
				DefaultText: "all ones",
				Destination: &defaultVal,
			},
			&cli.BoolFlag{
				Name:        "zipped",
				Aliases:     []string{"z"},
				Usage:       "the input is gzip-compressed",
				Destination: &zipped,
			},
			&cli.BoolFlag{
				Name:        "zstd",
				Usage:       "the input is zstd-compressed",
				Destination: &zstdInput,
			},
			&cli.BoolFlag{
				Name:        "verify",
				Usage:       "reopen the output and check every key",
				Destination: &verify,
			},
		}, keyModeFlags()...),
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 || c.NArg() > 2 {
				return cli.Exit("expected <output> [<input>]", 1)
			}
			mode, err := keyModeOf(c)
			if err != nil {
				return cli.Exit(err, 1)
			}
			if verify && isStdin(c.Args().Get(1)) {
				return cli.Exit("--verify needs an input file", 1)
			}
			if zipped && zstdInput {
				return cli.Exit("--zipped and --zstd are mutually exclusive", 1)
			}
			cdc, err := codec.ByName(codecName, limit)
			if err != nil {
				return cli.Exit(err, 1)
			}

			job := &buildJob{
				output:  c.Args().Get(0),
				keys:    &lineSource{path: c.Args().Get(1)},
				verify:  verify,
				tempDir: tempDir,
				opts: []csf.BuildOption{
					csf.WithCodec(cdc),
					csf.WithWorkers(workers),
					csf.WithTempDir(tempDir),
					csf.WithDefaultValue(defaultVal),
				},
			}
			switch {
			case zipped:
				job.keys.compression = compressionGzip
			case zstdInput:
				job.keys.compression = compressionZstd
			}
			job.storeSeed = rand.Uint64()
			if c.IsSet("seed") {
				job.opts = append(job.opts, csf.WithGlobalSeed(seed))
				job.storeSeed = seed
			}
			if valuesPath != "" {
				job.values = &valueSource{path: valuesPath}
			}

			startedAt := time.Now()
			defer func() {
				klog.Infof("Finished in %s", time.Since(startedAt))
			}()
			switch mode {
			case keyModeISO:
				err = runBuild[string](c.Context, job, csf.ISO88591{}, bytesToString)
			case keyModeBytes:
				err = runBuild[[]byte](c.Context, job, csf.Bytes{}, bytesToBytes)
			default:
				err = runBuild[string](c.Context, job, csf.Strings{}, bytesToString)
			}
			if err != nil {
				return cli.Exit(err, 1)
			}
			return nil
		},
	}
}

type buildJob struct {
	output  string
	keys    *lineSource
	values  *valueSource
	tempDir string
	verify  bool
	opts    []csf.BuildOption

	// storeSeed hashes keys read from standard input.
	storeSeed uint64
}

func bytesToString(b []byte) string { return string(b) }

func bytesToBytes(b []byte) []byte { return b }

func mapSeq[K any](s iter.Seq[[]byte], conv func([]byte) K) iter.Seq[K] {
	return func(yield func(K) bool) {
		for b := range s {
			if !yield(conv(b)) {
				return
			}
		}
	}
}

// runBuild builds the function of job with transform, writes it and
// optionally checks it. Keys from a file may be read several times;
// keys from standard input are read once into a store.
func runBuild[K any](ctx context.Context, job *buildJob, transform csf.Transform[K], conv func([]byte) K) error {
	bar := progressbar.Default(-1, "solving chunks")
	defer bar.Close()
	opts := append(job.opts, csf.WithProgress(bar))

	var (
		f   *csf.Function[K]
		err error
	)
	if isStdin(job.keys.path) {
		f, err = buildFromStdin(ctx, job, transform, conv, opts)
	} else {
		if job.values != nil {
			opts = append(opts, csf.WithValues(job.values.values()))
		}
		f, err = csf.Build(ctx, mapSeq(job.keys.lines(), conv), transform, opts...)
	}
	if err = errors.Join(err, job.keys.err, job.valuesErr()); err != nil {
		return err
	}
	defer f.Close()
	_ = bar.Finish()

	if err := f.WriteFile(job.output); err != nil {
		return fmt.Errorf("write %s: %w", job.output, err)
	}
	stats := f.BuildStats()
	klog.Infof("Wrote %s keys to %s: %s, %.3f bits/key, %d chunks, %d attempts",
		humanize.Comma(int64(f.Size())), job.output, humanize.Bytes(f.NumBits()/8),
		f.BitsPerKey(), f.NumChunks(), stats.Attempts)

	if job.verify {
		return verifyOutput(job, transform, conv)
	}
	return nil
}

func (job *buildJob) valuesErr() error {
	if job.values == nil {
		return nil
	}
	return job.values.err
}

// buildFromStdin reads standard input once into a store and builds from
// it. A duplicate triple cannot be retried without the keys, so it
// fails the build.
func buildFromStdin[K any](ctx context.Context, job *buildJob, transform csf.Transform[K], conv func([]byte) K, opts []csf.BuildOption) (*csf.Function[K], error) {
	store, err := chunkstore.New(job.tempDir, job.storeSeed)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	var next func() (uint64, bool)
	if job.values != nil {
		var stop func()
		next, stop = iter.Pull(job.values.values())
		defer stop()
	}

	var buf []byte
	var ordinal uint64
	for line := range job.keys.lines() {
		value := ordinal
		if next != nil {
			v, ok := next()
			if !ok {
				return nil, fmt.Errorf("%w: values end after %d keys", csferrors.ErrValueCountMismatch, ordinal)
			}
			value = v
		}
		buf = transform.AppendBytes(buf[:0], conv(line))
		if err := store.Add(buf, value); err != nil {
			return nil, err
		}
		ordinal++
	}
	if next != nil {
		if _, ok := next(); ok {
			return nil, fmt.Errorf("%w: more values than %d keys", csferrors.ErrValueCountMismatch, ordinal)
		}
	}
	klog.V(2).Infof("Read %s keys from standard input", humanize.Comma(int64(ordinal)))
	return csf.Build(ctx, nil, transform, append(opts, csf.WithStore(store))...)
}

// verifyOutput reopens the written function and checks every key maps to
// its value.
func verifyOutput[K any](job *buildJob, transform csf.Transform[K], conv func([]byte) K) error {
	f, err := csf.Open(job.output, transform)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Verify(); err != nil {
		return err
	}

	var buf []byte
	var ordinal uint64
	var next func() (uint64, bool)
	if job.values != nil {
		var stop func()
		next, stop = iter.Pull(job.values.values())
		defer stop()
	}
	for line := range job.keys.lines() {
		want := ordinal
		if next != nil {
			want, _ = next()
		}
		buf = transform.AppendBytes(buf[:0], conv(line))
		if got := f.GetBytes(buf); got != want {
			return fmt.Errorf("key %d (%q): got %d, want %d", ordinal, line, got, want)
		}
		ordinal++
	}
	klog.Infof("Verified %s keys", humanize.Comma(int64(ordinal)))
	return job.keys.err
}
