package capability

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/vsem-svoim/basecap/api/types"
	"github.com/vsem-svoim/basecap/capability"
	"github.com/vsem-svoim/basecap/cmd/basecap/commands/utils"
	"github.com/vsem-svoim/basecap/manifests"
	"github.com/vsem-svoim/basecap/portforward"
	"github.com/vsem-svoim/basecap/report"
	"github.com/vsem-svoim/basecap/report/localstore"
	"github.com/vsem-svoim/basecap/workload"

	"github.com/google/uuid"
	"github.com/urfave/cli"
)

// Command represents capability subcommand.
var Command = cli.Command{
	Name:  "capability",
	Usage: "Measure what the platform can actually serve",
	Subcommands: []cli.Command{
		runCommand,
		endpointCommand,
	},
}

var runCommand = cli.Command{
	Name:  "run",
	Usage: "run a capability measurement suite against the kube-apiserver",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "kubeconfig",
			Usage: "Path to the kubeconfig file",
			Value: utils.DefaultKubeConfigPath,
		},
		cli.StringFlag{
			Name:  "config",
			Usage: "Path to the suite file",
		},
		cli.StringFlag{
			Name:  "suite",
			Usage: "Use the built-in suite with this name (like apiserver-read)",
		},
		cli.IntFlag{
			Name:  "conns",
			Usage: "Total number of connections. It can override corresponding value defined by the suite",
			Value: 1,
		},
		cli.Float64Flag{
			Name:  "rate",
			Usage: "Maximum samples per second (Zero means no limitation). It can override corresponding value defined by the suite",
		},
		cli.IntFlag{
			Name:  "total",
			Usage: "Total number of samples. It can override corresponding value defined by the suite",
			Value: 1000,
		},
		cli.IntFlag{
			Name:  "client",
			Usage: "Total number of clients. It can override corresponding value defined by the suite",
			Value: 1,
		},
		cli.StringFlag{
			Name:  "user-agent",
			Usage: "User Agent",
		},
		cli.BoolFlag{
			Name:  "with-workload",
			Usage: "Deploy synthetic ingestion load for the duration of the suite",
		},
		cli.StringFlag{
			Name:  "workload-namespace",
			Usage: "Namespace for the synthetic workload",
			Value: "basecap-workload",
		},
		cli.IntFlag{
			Name:  "workload-feeds",
			Usage: "Number of synthetic feed deployments",
			Value: 3,
		},
		cli.IntFlag{
			Name:  "workload-replica",
			Usage: "Replicas per synthetic feed deployment",
			Value: 2,
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
		suite, err := loadSuite(cliCtx)
		if err != nil {
			return err
		}

		kubeCfgPath := cliCtx.String("kubeconfig")
		userAgent := cliCtx.String("user-agent")

		restClis, err := capability.NewClients(kubeCfgPath,
			suite.Spec.Conns, userAgent, int(suite.Spec.Rate))
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if cliCtx.Bool("with-workload") {
			ns := cliCtx.String("workload-namespace")

			cleanup, err := workload.DeployFeeds(ctx, kubeCfgPath,
				"basecap-feeds", ns,
				cliCtx.Int("workload-feeds"), cliCtx.Int("workload-replica"))
			if err != nil {
				return err
			}
			defer cleanup()

			go workload.RepeatIngestJob(ctx, kubeCfgPath, ns+"-jobs", 10*time.Second)
		}

		res := capability.RunSuite(ctx, suite, restClis, nil)
		return renderSuiteReport(cliCtx, suite.Name, res)
	},
}

var endpointCommand = cli.Command{
	Name:  "endpoint",
	Usage: "measure a component endpoint through a port-forward",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "kubeconfig",
			Usage: "Path to the kubeconfig file",
			Value: utils.DefaultKubeConfigPath,
		},
		cli.StringFlag{
			Name:     "namespace",
			Usage:    "Component namespace",
			Required: true,
		},
		cli.StringFlag{
			Name:     "selector",
			Usage:    "Pod label selector, like app=acquisition-orchestrator",
			Required: true,
		},
		cli.UintFlag{
			Name:  "port",
			Usage: "Target TCP port on the pod",
			Value: 8080,
		},
		cli.StringFlag{
			Name:  "path",
			Usage: "HTTP path to sample",
			Value: "/healthz",
		},
		cli.Float64Flag{
			Name:  "rate",
			Usage: "Maximum samples per second (Zero means no limitation)",
		},
		cli.IntFlag{
			Name:  "total",
			Usage: "Total number of samples",
			Value: 100,
		},
		cli.IntFlag{
			Name:  "client",
			Usage: "Total number of clients",
			Value: 1,
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
		namespace := cliCtx.String("namespace")
		selector := cliCtx.String("selector")

		pf, err := portforward.NewComponentPortForwarder(
			cliCtx.String("kubeconfig"), namespace, selector,
			uint16(cliCtx.Uint("port")))
		if err != nil {
			return err
		}
		if err := pf.Start(); err != nil {
			return err
		}
		defer pf.Stop()

		localPort, err := pf.GetLocalPort()
		if err != nil {
			return err
		}

		suite := &types.CapabilitySuite{
			Version: 1,
			Name:    "endpoint",
			Spec: types.CapabilitySpec{
				Rate:   cliCtx.Float64("rate"),
				Total:  cliCtx.Int("total"),
				Conns:  1,
				Client: cliCtx.Int("client"),
				Checks: []*types.WeightedCheck{
					{
						Shares: 100,
						HTTPGet: &types.CheckHTTPGet{
							URL: fmt.Sprintf("http://127.0.0.1:%d%s",
								localPort, cliCtx.String("path")),
						},
					},
				},
			},
		}

		res := capability.RunSuite(context.Background(), suite, nil, nil)
		return renderSuiteReport(cliCtx, suite.Name, res)
	},
}

// loadSuite loads and validates the suite, with flag overrides.
func loadSuite(cliCtx *cli.Context) (*types.CapabilitySuite, error) {
	cfgPath := cliCtx.String("config")
	builtin := cliCtx.String("suite")

	var data []byte
	var err error
	switch {
	case cfgPath != "":
		data, err = os.ReadFile(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", cfgPath, err)
		}
	case builtin != "":
		data, err = manifests.FS.ReadFile("suite/" + builtin + ".yaml")
		if err != nil {
			return nil, fmt.Errorf("no built-in suite %s: %w", builtin, err)
		}
	default:
		return nil, fmt.Errorf("either --config or --suite is required")
	}

	suite, err := capability.LoadSuite(data)
	if err != nil {
		return nil, err
	}

	// override value by flags
	if v := "rate"; cliCtx.IsSet(v) {
		suite.Spec.Rate = cliCtx.Float64(v)
	}
	if v := "conns"; cliCtx.IsSet(v) || suite.Spec.Conns == 0 {
		suite.Spec.Conns = cliCtx.Int(v)
	}
	if v := "total"; cliCtx.IsSet(v) || suite.Spec.Total == 0 {
		suite.Spec.Total = cliCtx.Int(v)
	}
	if v := "client"; cliCtx.IsSet(v) || suite.Spec.Client == 0 {
		suite.Spec.Client = cliCtx.Int(v)
	}

	if err := suite.Validate(); err != nil {
		return nil, err
	}
	return suite, nil
}

// renderSuiteReport folds one suite result into a report and writes it.
func renderSuiteReport(cliCtx *cli.Context, suiteName string, res types.SuiteResult) error {
	runID := uuid.New().String()
	rpt := report.New(runID, suiteName, "", map[string]types.SuiteResult{
		suiteName: res,
	})

	if cliCtx.Bool("archive") {
		store, err := localstore.NewStore(utils.DefaultArchiveDir)
		if err != nil {
			return err
		}
		if err := report.Archive(store, runID, rpt); err != nil {
			return err
		}
	}

	if outputFile := cliCtx.String("result"); outputFile != "" {
		return report.WriteFile(outputFile, rpt)
	}
	return report.Render(os.Stdout, rpt)
}
