package ollama

import (
	"net/http"
	"net/url"

	"github.com/OFFIS-RIT/segbench/pkg/ai"

	"github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"
	"golang.org/x/sync/semaphore"
)

var _ ai.Client = (*OllamaClient)(nil)

// OllamaClient implements ai.Client against a locally hosted or proxied
// Ollama server.
type OllamaClient struct {
	ai.Metrics

	model string

	reqLock *semaphore.Weighted

	// countTokens estimates the prompt size used to grow num_ctx. It
	// returns -1 when no estimate is available.
	countTokens func(string) int

	Client *api.Client
}

// NewOllamaClientParams contains configuration options for creating a new OllamaClient.
//
// MaxConcurrentRequests bounds the number of in-flight chat calls; values
// below one are treated as one.
type NewOllamaClientParams struct {
	Model string

	BaseURL string
	ApiKey  string

	MaxConcurrentRequests int64
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone so original request isn't modified
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewOllamaClient creates a new Ollama-based AI client. It connects to the
// Ollama server at BaseURL, or the default from OLLAMA_HOST when empty.
func NewOllamaClient(params NewOllamaClientParams) (*OllamaClient, error) {
	var (
		u   *url.URL
		err error
	)

	if params.BaseURL != "" {
		u, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	transport := http.DefaultTransport
	if params.ApiKey != "" {
		transport = &headerTransport{
			headers: map[string]string{"Authorization": "Bearer " + params.ApiKey},
			rt:      http.DefaultTransport,
		}
	}

	var cli *api.Client
	if u != nil {
		cli = api.NewClient(u, &http.Client{Transport: transport})
	} else {
		cli, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, err
		}
	}

	maxReq := params.MaxConcurrentRequests
	if maxReq < 1 {
		maxReq = 1
	}

	return &OllamaClient{
		model:       params.Model,
		reqLock:     semaphore.NewWeighted(maxReq),
		countTokens: tiktokenCount,
		Client:      cli,
	}, nil
}

func tiktokenCount(s string) int {
	enc, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		return -1
	}
	return len(enc.Encode(s, nil, nil))
}
