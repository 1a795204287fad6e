// Package workload deploys synthetic ingestion load so capability suites
// measure the platform under realistic pressure instead of an idle cluster.
package workload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vsem-svoim/basecap/argocli"
	"github.com/vsem-svoim/basecap/helmcli"
	"github.com/vsem-svoim/basecap/log"
	"github.com/vsem-svoim/basecap/manifests"
)

// RepeatIngestJob repeats a synthetic batch ingest job in its own namespace
// until the context is canceled. The namespace is removed on the way out.
func RepeatIngestJob(ctx context.Context, kubeCfgPath string, namespace string, interval time.Duration) {
	infoLogger := log.GetLogger(ctx).WithKeyValues("level", "info")
	warnLogger := log.GetLogger(ctx).WithKeyValues("level", "warn")

	target := "workload/ingest-job.yaml"
	data, err := manifests.FS.ReadFile(target)
	if err != nil {
		panic(fmt.Errorf("unexpected error when read %s from embed memory: %v",
			target, err))
	}

	jobFile, cleanup, err := argocli.CreateTempFileWithContent(data)
	if err != nil {
		panic(fmt.Errorf("unexpected error when create job yaml: %v", err))
	}
	defer func() { _ = cleanup() }()

	kr := argocli.NewKubectlRunner(kubeCfgPath, namespace)

	infoLogger.LogKV("msg", "creating namespace", "name", namespace)
	err = kr.CreateNamespace(ctx, 5*time.Minute, namespace)
	if err != nil {
		panic(fmt.Errorf("failed to create a new namespace %s: %v", namespace, err))
	}

	defer func() {
		infoLogger.LogKV("msg", "cleanup namespace", "name", namespace)
		err := kr.DeleteNamespace(context.TODO(), 60*time.Minute, namespace)
		if err != nil {
			warnLogger.LogKV("msg", "failed to cleanup namespace", "name", namespace, "error", err)
		}
	}()

	retryInterval := 5 * time.Second
	for {
		select {
		case <-ctx.Done():
			infoLogger.LogKV("msg", "stop creating ingest job")
			return
		default:
		}

		time.Sleep(retryInterval)

		aerr := kr.Apply(ctx, 5*time.Minute, jobFile)
		if aerr != nil {
			warnLogger.LogKV("msg", "failed to apply ingest job, retry after 5 seconds", "error", aerr)
			continue
		}

		werr := kr.Wait(ctx, 15*time.Minute, "condition=complete", "15m", "job/synthetic-ingest")
		if werr != nil {
			warnLogger.LogKV("msg", "failed to wait ingest job finish", "error", werr)
		}

		derr := kr.Delete(ctx, 5*time.Minute, jobFile)
		if derr != nil {
			warnLogger.LogKV("msg", "failed to delete ingest job", "error", derr)
		}
		time.Sleep(interval)
	}
}

// DeployFeeds deploys synthetic market data feed deployments via the feeds
// chart and returns a cleanup function uninstalling the release.
func DeployFeeds(
	ctx context.Context,
	kubeCfgPath string,
	releaseName string,
	namespace string,
	total, replica int,
) (cleanupFn func(), retErr error) {
	infoLogger := log.GetLogger(ctx).WithKeyValues("level", "info")
	warnLogger := log.GetLogger(ctx).WithKeyValues("level", "warn")

	target := "workload/feeds"
	ch, err := manifests.LoadChart(target)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s chart: %w", target, err)
	}

	releaseCli, err := helmcli.NewReleaseCli(
		kubeCfgPath,
		namespace,
		releaseName,
		ch,
		map[string]string{"app.kubernetes.io/part-of": "basecap-workload"},
		helmcli.StringPathValuesApplier(
			fmt.Sprintf("namespace=%s", namespace),
			fmt.Sprintf("total=%d", total),
			fmt.Sprintf("replica=%d", replica),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create a new helm release cli: %w", err)
	}

	infoLogger.LogKV(
		"msg", "deploying synthetic feeds",
		"total", total,
		"replica", replica,
	)

	err = releaseCli.Deploy(ctx, 10*time.Minute)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			infoLogger.LogKV("msg", "deploy is canceled")
			return func() {}, nil
		}
		return nil, fmt.Errorf("failed to deploy helm chart %s: %w", target, err)
	}
	infoLogger.LogKV("msg", "deployed synthetic feeds")

	cleanupFn = func() {
		infoLogger.LogKV("msg", "cleanup helm chart", "target", target)
		err := releaseCli.Uninstall()
		if err != nil {
			warnLogger.LogKV("msg", "failed to cleanup helm chart",
				"target", target,
				"error", err)
		}
	}
	return cleanupFn, nil
}
