package resolver

import (
	"context"
	"net/url"
	"time"

	"terarelay/internal"
	"terarelay/utils"
)

// ExternalAPIStrategy probes third-party resolver services that take a
// share URL and hand back direct links. These services come and go; each
// configured endpoint is tried once and the first usable answer wins.
type ExternalAPIStrategy struct {
	client    *utils.HTTPClient
	endpoints []string
}

// externalResponse is the de-facto response shape of the resolver
// services (they all imitate the provider's own list format).
type externalResponse struct {
	apiEnvelope
	List []struct {
		ServerFilename string `json:"server_filename"`
		Size           int64  `json:"size"`
		IsDir          int    `json:"isdir"`
		Dlink          string `json:"dlink"`
		DirectLink     string `json:"direct_link"`
		StreamURL      string `json:"stream_url"`
	} `json:"list"`
}

// NewExternalAPIStrategy creates the prober over the configured resolver
// endpoints.
func NewExternalAPIStrategy(client *utils.HTTPClient, endpoints []string) *ExternalAPIStrategy {
	return &ExternalAPIStrategy{client: client, endpoints: endpoints}
}

func (s *ExternalAPIStrategy) Name() string { return internal.StrategyExternal }

// Resolve queries each endpoint with the original share URL. Endpoint
// failures are collected; only when every endpoint fails does the
// strategy report a soft failure.
func (s *ExternalAPIStrategy) Resolve(ctx context.Context, link internal.ShareLink) (*internal.ResolvedDownload, error) {
	if len(s.endpoints) == 0 {
		return nil, internal.NewResolveError(internal.KindNetwork, "no resolver endpoints configured", nil)
	}

	var lastErr error
	for _, endpoint := range s.endpoints {
		dl, err := s.probe(ctx, endpoint, link)
		if err != nil {
			internal.LogDebug("external: %s failed: %v", endpoint, err)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		return dl, nil
	}
	return nil, classifyTransport("external resolvers", lastErr)
}

func (s *ExternalAPIStrategy) probe(ctx context.Context, endpoint string, link internal.ShareLink) (*internal.ResolvedDownload, error) {
	resp, err := s.client.Get(ctx, endpoint+"?url="+url.QueryEscape(link.Raw))
	if err != nil {
		return nil, classifyTransport("resolver API", err)
	}
	defer resp.Body.Close()

	var parsed externalResponse
	if err := decodeJSON(resp.Body, &parsed); err != nil {
		return nil, err
	}
	if apiErr := internal.ClassifyErrno(parsed.Errno, parsed.Errmsg); apiErr != nil {
		return nil, apiErr
	}

	for _, f := range parsed.List {
		if f.IsDir != 0 {
			continue
		}
		direct := f.DirectLink
		if direct == "" {
			direct = f.Dlink
		}
		if direct == "" {
			continue
		}
		return &internal.ResolvedDownload{
			DirectURL:  direct,
			Filename:   f.ServerFilename,
			Size:       f.Size,
			StreamURL:  f.StreamURL,
			ResolvedAt: time.Now(),
		}, nil
	}
	return nil, internal.NewResolveError(internal.KindNotFound, "resolver returned no usable links", nil)
}
