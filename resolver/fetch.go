package resolver

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"terarelay/internal"
	"terarelay/utils"
)

// fetchTimeout bounds a whole file transfer, not one strategy attempt.
const fetchTimeout = 300 * time.Second

// Fetcher downloads a resolved direct link into the local cache so it
// can be re-served (for the bot, uploaded to the chat).
type Fetcher struct {
	client   *utils.HTTPClient
	cacheDir string
	limiter  internal.RateLimiter
	quiet    bool
}

// FetchResult describes a completed download.
type FetchResult struct {
	Path     string
	Filename string
	Size     int64
	MimeType string
}

// NewFetcher creates a fetcher writing into cacheDir. limiter may be nil
// for unthrottled transfers.
func NewFetcher(settings *internal.Settings, limiter internal.RateLimiter) *Fetcher {
	return &Fetcher{
		client: utils.NewHTTPClientWithConfig(&utils.HTTPClientConfig{
			Timeout: fetchTimeout,
			Proxy:   settings.Proxy,
		}),
		cacheDir: settings.CacheDir,
		limiter:  limiter,
		quiet:    settings.Quiet,
	}
}

// Fetch streams the direct URL to disk and returns where it landed. The
// caller owns the file and removes it after use.
func (f *Fetcher) Fetch(ctx context.Context, dl *internal.ResolvedDownload) (*FetchResult, error) {
	if err := utils.EnsureDir(f.cacheDir); err != nil {
		return nil, internal.NewResolveError(internal.KindNetwork, "cache directory unavailable", err)
	}

	resp, err := f.client.Get(ctx, dl.DirectURL)
	if err != nil {
		return nil, classifyTransport("download", err)
	}
	defer resp.Body.Close()

	name := dl.Filename
	if name == "" {
		name = utils.DetermineFilename(dl.DirectURL, resp.Header)
	} else {
		name = utils.SanitizeFilename(name)
	}
	path := utils.UniquePath(filepath.Join(f.cacheDir, name))

	out, err := os.Create(path)
	if err != nil {
		return nil, internal.NewResolveError(internal.KindNetwork, "creating cache file", err)
	}

	total := resp.ContentLength
	if total <= 0 {
		total = dl.Size
	}
	tracker := utils.NewProgressTracker(total, f.quiet)

	written, copyErr := f.copy(ctx, out, tracker.Reader(resp.Body))
	closeErr := out.Close()
	summary := tracker.Finish()

	if copyErr != nil {
		os.Remove(path)
		return nil, internal.NewNetworkError("transfer interrupted", copyErr)
	}
	if closeErr != nil {
		os.Remove(path)
		return nil, internal.NewNetworkError("flushing cache file", closeErr)
	}
	internal.LogInfo("fetched %s: %s", name, summary)

	return &FetchResult{
		Path:     path,
		Filename: filepath.Base(path),
		Size:     written,
		MimeType: mimeTypeOf(resp.Header, path),
	}, nil
}

// copy moves data in rate-limited slices so a configured bandwidth cap
// holds over the whole transfer.
func (f *Fetcher) copy(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 64*1024)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			if f.limiter != nil {
				if err := f.limiter.Wait(ctx, n); err != nil {
					return written, err
				}
			}
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return written, writeErr
			}
			written += int64(n)
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

func mimeTypeOf(headers http.Header, path string) string {
	if ct := strings.Split(headers.Get("Content-Type"), ";")[0]; ct != "" && ct != "application/octet-stream" {
		return ct
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".mov":
		return "video/mp4"
	case ".mkv":
		return "video/x-matroska"
	case ".avi":
		return "video/x-msvideo"
	default:
		return "application/octet-stream"
	}
}
