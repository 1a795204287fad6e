package capability

import (
	"math"

	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/kubectl/pkg/scheme"
)

// NewClients creates N rest.Interface sharing one kubeconfig. Each client
// owns its own connection so that conns < clients exercises reuse.
func NewClients(kubeCfgPath string, num int, userAgent string, qps int) ([]rest.Interface, error) {
	restCfg, err := clientcmd.BuildConfigFromFlags("", kubeCfgPath)
	if err != nil {
		return nil, err
	}

	if qps == 0 {
		qps = math.MaxInt32
	}
	restCfg.QPS = float32(qps)
	restCfg.NegotiatedSerializer = scheme.Codecs.WithoutConversion()

	restCfg.UserAgent = userAgent
	if restCfg.UserAgent == "" {
		restCfg.UserAgent = rest.DefaultKubernetesUserAgent()
	}

	restClients := make([]rest.Interface, 0, num)
	for i := 0; i < num; i++ {
		cfgShallowCopy := *restCfg

		restCli, err := rest.UnversionedRESTClientFor(&cfgShallowCopy)
		if err != nil {
			return nil, err
		}
		restClients = append(restClients, restCli)
	}
	return restClients, nil
}
