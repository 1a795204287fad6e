package plan

import (
	"fmt"
	"os"
	"time"

	"github.com/vsem-svoim/basecap/cmd/basecap/commands/utils"
	"github.com/vsem-svoim/basecap/report"
	"github.com/vsem-svoim/basecap/schedule"

	"github.com/urfave/cli"
	"gopkg.in/yaml.v2"
	"k8s.io/utils/clock"
)

// Command represents plan subcommand.
var Command = cli.Command{
	Name:  "plan",
	Usage: "Compute the ingestion plan for the current business window",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Usage: "Path to the business config file (defaults to the built-in source table)",
		},
		cli.StringFlag{
			Name:  "at",
			Usage: "Plan for this RFC3339 instant instead of now",
		},
		cli.StringFlag{
			Name:  "output",
			Usage: "Output format (yaml or json)",
			Value: "yaml",
		},
		cli.StringFlag{
			Name:  "result",
			Usage: "Path to the file which stores the plan",
		},
	},
	Action: func(cliCtx *cli.Context) error {
		cfg, err := utils.LoadBusinessConfig(cliCtx.String("config"))
		if err != nil {
			return err
		}

		var c clock.PassiveClock = clock.RealClock{}
		if at := cliCtx.String("at"); at != "" {
			t, err := time.Parse(time.RFC3339, at)
			if err != nil {
				return fmt.Errorf("invalid value %q for flag --at: %w", at, err)
			}
			c = staticClock{t: t}
		}

		plan, err := schedule.NewPlannerWithClock(cfg, c).BuildPlan()
		if err != nil {
			return err
		}

		if outputFile := cliCtx.String("result"); outputFile != "" {
			return report.WriteFile(outputFile, plan)
		}

		switch format := cliCtx.String("output"); format {
		case "yaml":
			data, err := yaml.Marshal(plan)
			if err != nil {
				return fmt.Errorf("failed to marshal plan: %w", err)
			}
			_, err = os.Stdout.Write(data)
			return err
		case "json":
			return report.Render(os.Stdout, plan)
		default:
			return fmt.Errorf("unsupported output format %s", format)
		}
	},
}

// staticClock plans for a fixed instant.
type staticClock struct {
	t time.Time
}

func (c staticClock) Now() time.Time {
	return c.t
}

func (c staticClock) Since(t time.Time) time.Duration {
	return c.t.Sub(t)
}
