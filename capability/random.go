package capability

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"

	"github.com/vsem-svoim/basecap/api/types"
	"github.com/vsem-svoim/basecap/metrics"
)

// Checker executes one prepared sample against the target.
type Checker interface {
	Do(ctx context.Context) (bytes int64, err error)
}

// CheckBuilder binds a check to a client.
type CheckBuilder interface {
	Build(cli rest.Interface, httpCli *http.Client) Checker
}

// WeightedRandomChecks generates checks based on CapabilitySpec, picking
// among the weighted kinds.
type WeightedRandomChecks struct {
	once      sync.Once
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	builderCh chan CheckBuilder

	shares   []int
	builders []CheckBuilder
}

// NewWeightedRandomChecks creates new instance of WeightedRandomChecks.
func NewWeightedRandomChecks(spec *types.CapabilitySpec) (*WeightedRandomChecks, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid capability spec: %v", err)
	}

	shares := make([]int, 0, len(spec.Checks))
	builders := make([]CheckBuilder, 0, len(spec.Checks))
	for _, c := range spec.Checks {
		shares = append(shares, c.Shares)

		var builder CheckBuilder
		switch {
		case c.APIGet != nil:
			builder = newAPIGetBuilder(c.APIGet)
		case c.APIList != nil:
			builder = newAPIListBuilder(c.APIList)
		case c.HTTPGet != nil:
			builder = newHTTPGetBuilder(c.HTTPGet)
		default:
			return nil, fmt.Errorf("only support apiGet/apiList/httpGet")
		}
		builders = append(builders, builder)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WeightedRandomChecks{
		ctx:       ctx,
		cancel:    cancel,
		builderCh: make(chan CheckBuilder),
		shares:    shares,
		builders:  builders,
	}, nil
}

// Run starts to random pick check.
func (r *WeightedRandomChecks) Run(ctx context.Context, total int) {
	defer r.wg.Done()
	r.wg.Add(1)

	sum := 0
	for sum < total {
		builder := r.randomPick()
		select {
		case r.builderCh <- builder:
			sum += 1
		case <-r.ctx.Done():
			return
		case <-ctx.Done():
			return
		}
	}
}

// Chan returns channel to get random check.
func (r *WeightedRandomChecks) Chan() chan CheckBuilder {
	return r.builderCh
}

func (r *WeightedRandomChecks) randomPick() CheckBuilder {
	sum := 0
	for _, s := range r.shares {
		sum += s
	}

	rndInt, err := rand.Int(rand.Reader, big.NewInt(int64(sum)))
	if err != nil {
		panic(err)
	}

	rnd := rndInt.Int64()
	for i := range r.shares {
		s := int64(r.shares[i])
		if rnd < s {
			return r.builders[i]
		}
		rnd -= s
	}
	panic("unreachable")
}

// Stop stops check generator.
func (r *WeightedRandomChecks) Stop() {
	r.once.Do(func() {
		r.cancel()
		r.wg.Wait()
		close(r.builderCh)
	})
}

type restChecker struct {
	req *rest.Request
}

// Do implements Checker.Do.
func (c *restChecker) Do(ctx context.Context) (int64, error) {
	respBody, err := c.req.Stream(ctx)
	if err != nil {
		return 0, err
	}
	defer respBody.Close()

	return io.Copy(io.Discard, respBody)
}

type apiGetBuilder struct {
	version   schema.GroupVersion
	resource  string
	namespace string
	name      string
}

func newAPIGetBuilder(src *types.CheckAPIGet) *apiGetBuilder {
	return &apiGetBuilder{
		version: schema.GroupVersion{
			Group:   src.Group,
			Version: src.Version,
		},
		resource:  src.Resource,
		namespace: src.Namespace,
		name:      src.Name,
	}
}

// Build implements CheckBuilder.Build.
func (b *apiGetBuilder) Build(cli rest.Interface, _ *http.Client) Checker {
	// https://kubernetes.io/docs/reference/using-api/#api-groups
	apiPath := "apis"
	if b.version.Group == "" {
		apiPath = "api"
	}

	comps := make([]string, 2, 5)
	comps[0], comps[1] = apiPath, b.version.Version
	if b.namespace != "" {
		comps = append(comps, "namespaces", b.namespace)
	}
	comps = append(comps, b.resource, b.name)

	return &restChecker{
		req: cli.Get().AbsPath(comps...).
			SpecificallyVersionedParams(
				&metav1.GetOptions{},
				scheme.ParameterCodec,
				schema.GroupVersion{Version: "v1"},
			),
	}
}

type apiListBuilder struct {
	version   schema.GroupVersion
	resource  string
	namespace string
	limit     int64
	selector  string
}

func newAPIListBuilder(src *types.CheckAPIList) *apiListBuilder {
	return &apiListBuilder{
		version: schema.GroupVersion{
			Group:   src.Group,
			Version: src.Version,
		},
		resource:  src.Resource,
		namespace: src.Namespace,
		limit:     int64(src.Limit),
		selector:  src.Selector,
	}
}

// Build implements CheckBuilder.Build.
func (b *apiListBuilder) Build(cli rest.Interface, _ *http.Client) Checker {
	// https://kubernetes.io/docs/reference/using-api/#api-groups
	apiPath := "apis"
	if b.version.Group == "" {
		apiPath = "api"
	}

	comps := make([]string, 2, 5)
	comps[0], comps[1] = apiPath, b.version.Version
	if b.namespace != "" {
		comps = append(comps, "namespaces", b.namespace)
	}
	comps = append(comps, b.resource)

	return &restChecker{
		req: cli.Get().AbsPath(comps...).
			SpecificallyVersionedParams(
				&metav1.ListOptions{
					LabelSelector: b.selector,
					Limit:         b.limit,
				},
				scheme.ParameterCodec,
				schema.GroupVersion{Version: "v1"},
			),
	}
}

type httpGetBuilder struct {
	url string
}

func newHTTPGetBuilder(src *types.CheckHTTPGet) *httpGetBuilder {
	return &httpGetBuilder{url: src.URL}
}

// Build implements CheckBuilder.Build.
func (b *httpGetBuilder) Build(_ rest.Interface, httpCli *http.Client) Checker {
	return &httpChecker{cli: httpCli, url: b.url}
}

type httpChecker struct {
	cli *http.Client
	url string
}

// Do implements Checker.Do.
func (c *httpChecker) Do(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.cli.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	bytes, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		return bytes, err
	}
	if resp.StatusCode >= 400 {
		return bytes, metrics.HTTPStatusError{Code: resp.StatusCode}
	}
	return bytes, nil
}
