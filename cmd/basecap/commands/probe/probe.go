package probe

import (
	"context"
	"fmt"
	"os"

	"github.com/vsem-svoim/basecap/api/types"
	"github.com/vsem-svoim/basecap/cmd/basecap/commands/utils"
	"github.com/vsem-svoim/basecap/manifests"
	"github.com/vsem-svoim/basecap/probe"
	"github.com/vsem-svoim/basecap/report"
	"github.com/vsem-svoim/basecap/report/localstore"

	"github.com/google/uuid"
	"github.com/urfave/cli"
)

// Command represents probe subcommand.
var Command = cli.Command{
	Name:  "probe",
	Usage: "Verify a platform component's Kubernetes footprint",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "kubeconfig",
			Usage: "Path to the kubeconfig file",
			Value: utils.DefaultKubeConfigPath,
		},
		cli.StringFlag{
			Name:  "profile",
			Usage: "Path to the probe profile file",
		},
		cli.StringFlag{
			Name:  "component",
			Usage: "Use the built-in profile for this component (like data-acquisition)",
		},
		cli.StringSliceFlag{
			Name:  "expect",
			Usage: "Override expected resources, like deployments=a,b (repeatable)",
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
		profile, err := loadProfile(cliCtx)
		if err != nil {
			return err
		}

		clientset, err := utils.BuildClientset(cliCtx.String("kubeconfig"))
		if err != nil {
			return err
		}

		suites := probe.NewProber(clientset, profile).Run(context.Background())

		runID := uuid.New().String()
		rpt := report.New(runID, profile.Spec.Component, profile.Spec.Namespace, suites)

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
	},
}

// loadProfile loads and validates the probe profile, with flag overrides.
func loadProfile(cliCtx *cli.Context) (*types.ProbeProfile, error) {
	profilePath := cliCtx.String("profile")
	component := cliCtx.String("component")

	var data []byte
	var err error
	switch {
	case profilePath != "":
		data, err = os.ReadFile(profilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", profilePath, err)
		}
	case component != "":
		data, err = manifests.FS.ReadFile("probe/" + component + ".yaml")
		if err != nil {
			return nil, fmt.Errorf("no built-in profile for component %s: %w", component, err)
		}
	default:
		return nil, fmt.Errorf("either --profile or --component is required")
	}

	profile, err := probe.LoadProfile(data)
	if err != nil {
		return nil, err
	}

	// override expected resources by flags
	overrides, err := utils.KeyValuesMap(cliCtx.StringSlice("expect"))
	if err != nil {
		return nil, err
	}
	for key, values := range overrides {
		switch key {
		case "deployments":
			profile.Spec.Deployments = values
		case "services":
			profile.Spec.Services = values
		case "configmaps":
			profile.Spec.ConfigMaps = values
		default:
			return nil, fmt.Errorf("unsupported expectation %s", key)
		}
	}

	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return profile, nil
}
