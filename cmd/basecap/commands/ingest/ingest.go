package ingest

import (
	"context"
	"os"
	"time"

	"github.com/vsem-svoim/basecap/argocli"
	"github.com/vsem-svoim/basecap/cmd/basecap/commands/utils"
	"github.com/vsem-svoim/basecap/orchestrate"
	"github.com/vsem-svoim/basecap/report"
	"github.com/vsem-svoim/basecap/report/localstore"

	"github.com/google/uuid"
	"github.com/urfave/cli"
)

// Command represents ingest subcommand.
var Command = cli.Command{
	Name:  "ingest",
	Usage: "Plan the current window and run one ingestion workflow per source",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "kubeconfig",
			Usage: "Path to the kubeconfig file",
			Value: utils.DefaultKubeConfigPath,
		},
		cli.StringFlag{
			Name:  "config",
			Usage: "Path to the business config file (defaults to the built-in source table)",
		},
		cli.StringFlag{
			Name:  "namespace",
			Usage: "Namespace the ingestion workflows run in",
			Value: "base-workflows",
		},
		cli.StringFlag{
			Name:  "template",
			Usage: "WorkflowTemplate each source instantiates",
			Value: "data-ingestion-pipeline",
		},
		cli.DurationFlag{
			Name:  "timeout",
			Usage: "Timeout for one workflow submission including --wait",
			Value: 30 * time.Minute,
		},
		cli.IntFlag{
			Name:  "parallelism",
			Usage: "Maximum concurrent source submissions (zero means all at once)",
		},
		cli.StringFlag{
			Name:  "result",
			Usage: "Path to the file which stores results",
		},
		cli.BoolFlag{
			Name:  "archive",
			Usage: "Also archive the report under the local report store",
		},
	},
	Action: func(cliCtx *cli.Context) error {
		cfg, err := utils.LoadBusinessConfig(cliCtx.String("config"))
		if err != nil {
			return err
		}

		runID := uuid.New().String()
		submitter := argocli.NewArgoRunner(
			cliCtx.String("kubeconfig"), cliCtx.String("namespace"))

		result, err := orchestrate.NewIngestor(submitter).RunIngestion(
			context.Background(),
			orchestrate.IngestionConfig{
				Business:      cfg,
				Template:      cliCtx.String("template"),
				RunID:         runID,
				SubmitTimeout: cliCtx.Duration("timeout"),
				Parallelism:   cliCtx.Int("parallelism"),
			})
		if err != nil {
			return err
		}

		if cliCtx.Bool("archive") {
			store, err := localstore.NewStore(utils.DefaultArchiveDir)
			if err != nil {
				return err
			}
			if err := report.Archive(store, runID, result); err != nil {
				return err
			}
		}

		if outputFile := cliCtx.String("result"); outputFile != "" {
			return report.WriteFile(outputFile, result)
		}
		return report.Render(os.Stdout, result)
	},
}
