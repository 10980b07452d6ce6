package main

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/tamirms/csf"
	"github.com/tamirms/csf/codec"
	csferrors "github.com/tamirms/csf/errors"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

func newCmdStats() *cli.Command {
	var verify bool
	return &cli.Command{
		Name:      "stats",
		Usage:     "print the size and layout of a function",
		ArgsUsage: "<function>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "verify",
				Usage:       "check the file checksum",
				Value:       true,
				Destination: &verify,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("expected <function>", 1)
			}
			path := c.Args().First()
			f, kind, err := openAny(path)
			if err != nil {
				return cli.Exit(err, 1)
			}
			defer f.Close()

			if verify {
				if err := f.Verify(); err != nil {
					return cli.Exit(fmt.Errorf("%s: %w", path, err), 1)
				}
				klog.V(1).Infof("Checksum of %s verified", path)
			}
			fmt.Printf("keys:          %s\n", humanize.Comma(int64(f.Size())))
			fmt.Printf("key type:      %s\n", kind)
			fmt.Printf("codec:         %s\n", f.Codec())
			fmt.Printf("max codeword:  %d bits\n", f.MaxCodewordLength())
			fmt.Printf("chunks:        %s\n", humanize.Comma(int64(f.NumChunks())))
			fmt.Printf("size:          %s (%s bits)\n", humanize.Bytes(f.NumBits()/8), humanize.Comma(int64(f.NumBits())))
			fmt.Printf("bits per key:  %.3f\n", f.BitsPerKey())
			return nil
		},
	}
}

// function is the key-type independent part of csf.Function.
type function interface {
	Size() uint64
	NumChunks() int
	NumBits() uint64
	BitsPerKey() float64
	MaxCodewordLength() int
	Codec() codec.ID
	Verify() error
	Close() error
}

// openAny opens path with whichever built-in transform it was built with.
func openAny(path string) (function, string, error) {
	f, err := csf.Open[string](path, nil)
	if err == nil {
		return f, "utf8", nil
	}
	if !errors.Is(err, csferrors.ErrTransformMismatch) {
		return nil, "", err
	}
	if g, err := csf.Open[string](path, csf.ISO88591{}); err == nil {
		return g, "iso-8859-1", nil
	}
	b, err := csf.Open[[]byte](path, nil)
	if err != nil {
		return nil, "", err
	}
	return b, "bytes", nil
}
