package reports

import (
	"fmt"
	"io"
	"os"

	"github.com/vsem-svoim/basecap/cmd/basecap/commands/utils"
	"github.com/vsem-svoim/basecap/report/localstore"

	"github.com/urfave/cli"
)

// Command represents report subcommand.
var Command = cli.Command{
	Name:  "report",
	Usage: "Manage archived run reports",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "archive-dir",
			Usage: "Path to the report archive",
			Value: utils.DefaultArchiveDir,
		},
	},
	Subcommands: []cli.Command{
		listCommand,
		showCommand,
		deleteCommand,
	},
}

func openStore(cliCtx *cli.Context) (*localstore.Store, error) {
	return localstore.NewStore(cliCtx.Parent().String("archive-dir"))
}

var listCommand = cli.Command{
	Name:  "list",
	Usage: "list archived run IDs",
	Action: func(cliCtx *cli.Context) error {
		store, err := openStore(cliCtx)
		if err != nil {
			return err
		}

		refs, err := store.List()
		if err != nil {
			return err
		}
		for _, ref := range refs {
			fmt.Println(ref)
		}
		return nil
	},
}

var showCommand = cli.Command{
	Name:      "show",
	Usage:     "print one archived report",
	ArgsUsage: "<run-id>",
	Action: func(cliCtx *cli.Context) error {
		runID := cliCtx.Args().First()
		if runID == "" {
			return fmt.Errorf("run-id is required")
		}

		store, err := openStore(cliCtx)
		if err != nil {
			return err
		}

		r, err := store.OpenReader(runID)
		if err != nil {
			return err
		}
		defer r.Close()

		_, err = io.Copy(os.Stdout, io.NewSectionReader(r, 0, r.Size()))
		return err
	},
}

var deleteCommand = cli.Command{
	Name:      "delete",
	Usage:     "delete one archived report",
	ArgsUsage: "<run-id>",
	Action: func(cliCtx *cli.Context) error {
		runID := cliCtx.Args().First()
		if runID == "" {
			return fmt.Errorf("run-id is required")
		}

		store, err := openStore(cliCtx)
		if err != nil {
			return err
		}
		return store.Delete(runID)
	},
}
