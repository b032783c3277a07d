package resolver

import (
	"context"
	"io"
	"regexp"
	"strings"
	"time"

	"terarelay/internal"
	"terarelay/utils"
)

// jsToken is embedded in the share page inside a URL-encoded function
// call; the pattern matches the argument between %28%22 and %22%29 once
// backslash escapes are stripped.
var jsTokenPattern = regexp.MustCompile(`%28%22(.*?)%22%29`)

// StreamStrategy imitates a mobile browser loading the share page. It
// intercepts the page-embedded authorization token and browserid cookie,
// then walks the same API calls the in-page player performs. No stored
// credentials are involved.
type StreamStrategy struct {
	api *shareAPI
}

// NewStreamStrategy creates the stream-interception strategy.
func NewStreamStrategy(client *utils.HTTPClient) *StreamStrategy {
	return &StreamStrategy{api: newShareAPI(client)}
}

func (s *StreamStrategy) Name() string { return internal.StrategyStream }

// Resolve fetches the wap share page, extracts jsToken and session
// cookies, and requests a direct link with them.
func (s *StreamStrategy) Resolve(ctx context.Context, link internal.ShareLink) (*internal.ResolvedDownload, error) {
	resp, err := s.api.client.GetWithHeaders(ctx, s.api.pageURL(link), map[string]string{
		"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	})
	if err != nil {
		return nil, classifyTransport("share page", err)
	}
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	cookies := resp.Cookies()
	resp.Body.Close()
	if readErr != nil {
		return nil, internal.NewNetworkError("reading share page", readErr)
	}

	jsToken := extractJsToken(string(body))
	if jsToken == "" {
		return nil, internal.NewResolveError(internal.KindVerificationRequired,
			"no authorization token on share page", nil)
	}
	internal.LogDebug("stream: intercepted page token (%d cookies)", len(cookies))

	cookieHeader := cookieHeaderFromResponse(cookies)

	info, err := s.api.shortURLInfo(ctx, link, cookieHeader)
	if err != nil {
		return nil, err
	}

	file := pickFile(info.List)
	if file == nil {
		return nil, internal.NewResolveError(internal.KindNotFound, "share contains only folders", nil)
	}

	dlink, err := s.api.requestDlink(ctx, link, info, file, jsToken, cookieHeader)
	if err != nil {
		return nil, err
	}

	return &internal.ResolvedDownload{
		DirectURL:  s.api.resolveFastCDN(ctx, dlink),
		Filename:   file.ServerFilename,
		Size:       file.Size,
		ResolvedAt: time.Now(),
	}, nil
}

func extractJsToken(page string) string {
	cleaned := strings.ReplaceAll(page, `\`, "")
	if m := jsTokenPattern.FindStringSubmatch(cleaned); len(m) > 1 {
		return m[1]
	}
	return ""
}
