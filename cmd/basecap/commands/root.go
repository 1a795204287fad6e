package commands

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/vsem-svoim/basecap/cmd/basecap/commands/capability"
	"github.com/vsem-svoim/basecap/cmd/basecap/commands/deploy"
	"github.com/vsem-svoim/basecap/cmd/basecap/commands/ingest"
	"github.com/vsem-svoim/basecap/cmd/basecap/commands/plan"
	"github.com/vsem-svoim/basecap/cmd/basecap/commands/probe"
	"github.com/vsem-svoim/basecap/cmd/basecap/commands/reports"

	"github.com/urfave/cli"
	"k8s.io/klog/v2"
)

// App returns basecap application.
func App() *cli.App {
	return &cli.App{
		Name:  "basecap",
		Usage: "capability verification and ingestion orchestration for the BASE platform",
		Commands: []cli.Command{
			plan.Command,
			probe.Command,
			capability.Command,
			ingest.Command,
			deploy.Command,
			reports.Command,
		},
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "v",
				Usage: "log level for V logs",
				Value: "0",
			},
		},
		Before: func(cliCtx *cli.Context) error {
			return initKlog(cliCtx)
		},
	}
}

// initKlog initializes klog.
func initKlog(cliCtx *cli.Context) error {
	klogFlagset := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	klog.InitFlags(klogFlagset)

	vInStr := cliCtx.GlobalString("v")
	if vFlag, err := strconv.Atoi(vInStr); err != nil || vFlag < 0 {
		return fmt.Errorf("invalid value \"%v\" for flag -v: value must be a non-negative integer", vInStr)
	}

	if err := klogFlagset.Set("v", vInStr); err != nil {
		return fmt.Errorf("failed to set log level: %w", err)
	}
	return nil
}
