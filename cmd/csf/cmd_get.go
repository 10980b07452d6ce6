package main

import (
	"errors"
	"fmt"

	"github.com/tamirms/csf"
	csferrors "github.com/tamirms/csf/errors"
	"github.com/urfave/cli/v2"
)

func newCmdGet() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "print the values of keys",
		ArgsUsage: "<function> <key>...",
		Flags:     keyModeFlags(),
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return cli.Exit("expected <function> <key>...", 1)
			}
			mode, err := keyModeOf(c)
			if err != nil {
				return cli.Exit(err, 1)
			}
			path, keys := c.Args().First(), c.Args().Tail()
			switch mode {
			case keyModeISO:
				err = printValues[string](path, csf.ISO88591{}, keys, func(s string) string { return s })
			case keyModeBytes:
				err = printValues[[]byte](path, csf.Bytes{}, keys, func(s string) []byte { return []byte(s) })
			default:
				err = printValues[string](path, csf.Strings{}, keys, func(s string) string { return s })
			}
			if err != nil {
				return cli.Exit(err, 1)
			}
			return nil
		},
	}
}

func printValues[K any](path string, transform csf.Transform[K], keys []string, conv func(string) K) error {
	f, err := csf.Open(path, transform)
	if errors.Is(err, csferrors.ErrTransformMismatch) {
		return fmt.Errorf("%w (try --iso or --byte-array)", err)
	}
	if err != nil {
		return err
	}
	defer f.Close()
	for _, k := range keys {
		fmt.Printf("%s\t%d\n", k, f.Get(conv(k)))
	}
	return nil
}
