// Command csf builds and queries compressed static functions.
//
// Usage:
//
//	csf build [--values FILE] [--codec NAME] OUTPUT [INPUT]
//	csf get FUNCTION KEY...
//	csf stats FUNCTION
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

var gitCommitSHA = ""

func main() {
	defer klog.Flush()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, syscall.SIGTERM, syscall.SIGINT)

		select {
		case <-interrupt:
			fmt.Println()
			klog.Info("received interrupt signal")
			cancel()
		case <-ctx.Done():
		}

		// A second signal kills the process.
		signal.Stop(interrupt)
	}()

	app := &cli.App{
		Name:        "csf",
		Version:     gitCommitSHA,
		Usage:       "build and query compressed static functions",
		Description: "csf maps a fixed set of keys to integer values in close to the entropy of the values, without storing the keys.",
		Flags:       newKlogFlags(),
		Commands: []*cli.Command{
			newCmdBuild(),
			newCmdGet(),
			newCmdStats(),
		},
	}

	sort.Sort(cli.FlagsByName(app.Flags))
	sort.Sort(cli.CommandsByName(app.Commands))

	if err := app.RunContext(ctx, os.Args); err != nil {
		klog.Fatal(err)
	}
}
