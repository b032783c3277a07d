package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"terarelay/internal"
	"terarelay/utils"
)

// Wire constants for the provider's share APIs. The web client always
// sends these; requests without them are rejected outright.
const (
	providerAppID   = "250528"
	providerChannel = "dubox"
	apiBase         = "https://www.terabox.com"
)

var videoExtensions = map[string]bool{
	".mp4": true,
	".mkv": true,
	".avi": true,
	".mov": true,
}

// apiEnvelope is the common shape of every provider API response.
type apiEnvelope struct {
	Errno  int    `json:"errno"`
	Errmsg string `json:"errmsg"`
}

type fileEntry struct {
	FsID           int64  `json:"fs_id"`
	IsDir          int    `json:"isdir"`
	ServerFilename string `json:"server_filename"`
	Size           int64  `json:"size"`
	Dlink          string `json:"dlink"`
	Thumbs         struct {
		URL3 string `json:"url3"`
	} `json:"thumbs"`
}

// shortURLInfo is the response of /api/shorturlinfo: share metadata plus
// the sign/timestamp pair later required by /share/download.
type shortURLInfo struct {
	apiEnvelope
	ShareID   json.Number `json:"shareid"`
	UK        json.Number `json:"uk"`
	Sign      string      `json:"sign"`
	Timestamp json.Number `json:"timestamp"`
	List      []fileEntry `json:"list"`
}

type downloadResponse struct {
	apiEnvelope
	Dlink string `json:"dlink"`
}

// shareAPI speaks the provider's share endpoints. Both the stream and the
// session strategies walk the same two calls; they differ only in which
// cookies they present.
type shareAPI struct {
	client *utils.HTTPClient
	base   string // overridable for tests
}

func newShareAPI(client *utils.HTTPClient) *shareAPI {
	return &shareAPI{client: client, base: apiBase}
}

// pageURL is the mobile share page carrying the embedded jsToken.
func (a *shareAPI) pageURL(link internal.ShareLink) string {
	return a.base + "/wap/share/filelist?surl=" + url.QueryEscape(link.Surl)
}

func (a *shareAPI) browserHeaders(link internal.ShareLink, cookieHeader string) map[string]string {
	h := map[string]string{
		"Referer":          a.base + "/sharing/link?surl=" + url.QueryEscape(link.Surl),
		"Origin":           a.base,
		"X-Requested-With": "XMLHttpRequest",
	}
	if cookieHeader != "" {
		h["Cookie"] = cookieHeader
	}
	return h
}

// shortURLInfo fetches share metadata for the link.
func (a *shareAPI) shortURLInfo(ctx context.Context, link internal.ShareLink, cookieHeader string) (*shortURLInfo, error) {
	params := url.Values{}
	params.Set("app_id", providerAppID)
	params.Set("shorturl", link.ShortURL())
	params.Set("root", "1")

	infoURL := a.base + "/api/shorturlinfo?" + params.Encode()
	resp, err := a.client.GetWithHeaders(ctx, infoURL, a.browserHeaders(link, cookieHeader))
	if err != nil {
		return nil, classifyTransport("shorturlinfo", err)
	}
	defer resp.Body.Close()

	var info shortURLInfo
	if err := decodeJSON(resp.Body, &info); err != nil {
		return nil, err
	}
	if apiErr := internal.ClassifyErrno(info.Errno, info.Errmsg); apiErr != nil {
		return nil, apiErr
	}
	if len(info.List) == 0 {
		return nil, internal.NewResolveError(internal.KindNotFound, "share contains no files", nil)
	}
	return &info, nil
}

// requestDlink asks /share/download for a direct link to one file. The
// jsToken argument is empty for cookie-authenticated sessions, where the
// stored session replaces the page token.
func (a *shareAPI) requestDlink(ctx context.Context, link internal.ShareLink, info *shortURLInfo, file *fileEntry, jsToken, cookieHeader string) (string, error) {
	params := url.Values{}
	params.Set("app_id", providerAppID)
	params.Set("channel", providerChannel)
	params.Set("product", "share")
	params.Set("clienttype", "0")
	params.Set("nozip", "0")
	params.Set("web", "1")
	params.Set("uk", info.UK.String())
	params.Set("sign", info.Sign)
	params.Set("shareid", info.ShareID.String())
	params.Set("primaryid", info.ShareID.String())
	params.Set("timestamp", info.Timestamp.String())
	if jsToken != "" {
		params.Set("jsToken", jsToken)
	}
	params.Set("fid_list", fmt.Sprintf("[%d]", file.FsID))

	dlURL := a.base + "/share/download?" + params.Encode()
	resp, err := a.client.GetWithHeaders(ctx, dlURL, a.browserHeaders(link, cookieHeader))
	if err != nil {
		return "", classifyTransport("share/download", err)
	}
	defer resp.Body.Close()

	var dl downloadResponse
	if err := decodeJSON(resp.Body, &dl); err != nil {
		return "", err
	}
	if apiErr := internal.ClassifyErrno(dl.Errno, dl.Errmsg); apiErr != nil {
		return "", apiErr
	}
	if dl.Dlink == "" {
		return "", internal.NewResolveError(internal.KindProvider, "no download link in response", nil)
	}
	return dl.Dlink, nil
}

// pickFile chooses the file to resolve: the first video, else the first
// plain file in the share.
func pickFile(list []fileEntry) *fileEntry {
	var first *fileEntry
	for i := range list {
		f := &list[i]
		if f.IsDir != 0 {
			continue
		}
		if first == nil {
			first = f
		}
		ext := strings.ToLower(extOf(f.ServerFilename))
		if videoExtensions[ext] {
			return f
		}
	}
	return first
}

func extOf(name string) string {
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		return name[idx:]
	}
	return ""
}

var cdnHostPattern = regexp.MustCompile(`://(.*?)\.`)

// resolveFastCDN follows the dlink redirect chain and rewrites the final
// host onto the fast CDN. Best effort: on any failure the original dlink
// is kept.
func (a *shareAPI) resolveFastCDN(ctx context.Context, dlink string) string {
	resp, err := a.client.Head(ctx, dlink)
	if err != nil {
		internal.LogDebug("CDN redirect resolution failed, keeping dlink: %v", err)
		return dlink
	}
	resp.Body.Close()
	return rewriteFastCDN(resp.Request.URL.String())
}

// rewriteFastCDN swaps the first subdomain of the final CDN URL for the
// fast host. Splicing by match position keeps the scheme intact even
// when the subdomain text also occurs earlier in the URL.
func rewriteFastCDN(final string) string {
	loc := cdnHostPattern.FindStringSubmatchIndex(final)
	if loc == nil {
		return final
	}
	fast := final[:loc[2]] + "d3" + final[loc[3]:]
	return strings.ReplaceAll(fast, "by=themis", "by=dapunta")
}

func decodeJSON(body io.Reader, v interface{}) error {
	data, err := io.ReadAll(io.LimitReader(body, 4<<20))
	if err != nil {
		return internal.NewNetworkError("reading response", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return internal.NewResolveError(internal.KindProvider, "response is not the expected JSON", err)
	}
	return nil
}

// classifyTransport keeps already-classified errors and wraps raw
// transport failures as soft network errors.
func classifyTransport(op string, err error) error {
	var re *internal.ResolveError
	if errors.As(err, &re) {
		return err
	}
	return internal.NewNetworkError(op, err)
}

// cookieHeaderFromResponse assembles the cookie string a browser would
// send back after loading the share page.
func cookieHeaderFromResponse(cookies []*http.Cookie) string {
	parts := make([]string, 0, len(cookies)+1)
	parts = append(parts, "lang=en")
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, ";")
}
