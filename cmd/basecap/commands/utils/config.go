package utils

import (
	"fmt"
	"os"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/vsem-svoim/basecap/api/types"
	"github.com/vsem-svoim/basecap/manifests"
	"github.com/vsem-svoim/basecap/schedule"
)

// BuildClientset returns kubernetes clientset.
func BuildClientset(kubeCfgPath string) (*kubernetes.Clientset, error) {
	config, err := clientcmd.BuildConfigFromFlags("", kubeCfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to build client-go config: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to build client-go rest client: %w", err)
	}
	return clientset, nil
}

// LoadBusinessConfig loads the business config from path, or the embedded
// default table when path is empty.
func LoadBusinessConfig(path string) (*types.BusinessConfig, error) {
	if path == "" {
		data, err := manifests.FS.ReadFile("config/business.yaml")
		if err != nil {
			return nil, fmt.Errorf("unexpected error when read default business config from embed memory: %w", err)
		}
		return schedule.LoadConfig(data)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return schedule.LoadConfig(data)
}
