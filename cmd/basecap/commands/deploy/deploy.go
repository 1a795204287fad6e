package deploy

import (
	"context"
	"fmt"
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

// Command represents deploy subcommand.
var Command = cli.Command{
	Name:  "deploy",
	Usage: "Run the GitOps deployment pipeline and validate application health",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "kubeconfig",
			Usage: "Path to the kubeconfig file",
			Value: utils.DefaultKubeConfigPath,
		},
		cli.StringFlag{
			Name:  "git-repo",
			Usage: "Platform repository ArgoCD deploys from",
			Value: "https://github.com/vsem-svoim/base-platform.git",
		},
		cli.StringFlag{
			Name:  "git-revision",
			Usage: "Revision to deploy",
			Value: "main",
		},
		cli.StringFlag{
			Name:  "environment",
			Usage: "Environment overlay to deploy",
			Value: "dev",
		},
		cli.StringFlag{
			Name:  "argocd-namespace",
			Usage: "Namespace ArgoCD runs in",
			Value: "argocd",
		},
		cli.StringFlag{
			Name:  "workflow-namespace",
			Usage: "Namespace the deployment workflow runs in",
			Value: "base-workflows",
		},
		cli.DurationFlag{
			Name:  "monitor-timeout",
			Usage: "How long to watch the deployment workflow",
			Value: 30 * time.Minute,
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
		kubeCfgPath := cliCtx.String("kubeconfig")

		clientset, err := utils.BuildClientset(kubeCfgPath)
		if err != nil {
			return err
		}

		runID := uuid.New().String()
		deployer := orchestrate.NewDeployer(
			clientset,
			argocli.NewKubectlRunner(kubeCfgPath, cliCtx.String("workflow-namespace")),
			argocli.NewKubectlRunner(kubeCfgPath, cliCtx.String("argocd-namespace")),
			cliCtx.String("argocd-namespace"),
		)

		result, err := deployer.RunDeployment(context.Background(),
			orchestrate.DeploymentConfig{
				GitRepoURL:     cliCtx.String("git-repo"),
				GitRevision:    cliCtx.String("git-revision"),
				Environment:    cliCtx.String("environment"),
				RunID:          runID,
				MonitorTimeout: cliCtx.Duration("monitor-timeout"),
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
			if err := report.WriteFile(outputFile, result); err != nil {
				return err
			}
		} else if err := report.Render(os.Stdout, result); err != nil {
			return err
		}

		if !result.Succeeded {
			return fmt.Errorf("deployment %s did not succeed", runID)
		}
		return nil
	},
}
