package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"terarelay/internal"
	"terarelay/utils"
)

// unreachableDlink points at a closed port so CDN resolution fails fast
// and the original dlink is kept.
const unreachableDlink = "http://127.0.0.1:9/file.mp4"

func testLink(t *testing.T) internal.ShareLink {
	t.Helper()
	link, err := utils.NewShareLinkValidator().Normalize("https://terabox.com/s/1AbC123")
	if err != nil {
		t.Fatal(err)
	}
	return link
}

// newShareServer fakes the provider's share page and APIs. Handlers may
// be nil to use a working default.
func newShareServer(t *testing.T, page, info, download http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	if page == nil {
		page = func(w http.ResponseWriter, r *http.Request) {
			http.SetCookie(w, &http.Cookie{Name: "browserid", Value: "bid-1"})
			io.WriteString(w, `<html>fn.call(\"%28%22tok-123%22%29\")</html>`)
		}
	}
	if info == nil {
		info = func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"errno":0,"shareid":11,"uk":22,"sign":"sg","timestamp":33,
				"list":[{"fs_id":99,"isdir":0,"server_filename":"movie.mp4","size":2048}]}`)
		}
	}
	if download == nil {
		download = func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, `{"errno":0,"dlink":%q}`, unreachableDlink)
		}
	}
	mux.HandleFunc("/wap/share/filelist", page)
	mux.HandleFunc("/api/shorturlinfo", info)
	mux.HandleFunc("/share/download", download)
	return httptest.NewServer(mux)
}

func newTestStream(server *httptest.Server) *StreamStrategy {
	s := NewStreamStrategy(utils.NewHTTPClient())
	s.api.base = server.URL
	return s
}

func TestStreamStrategy_Resolve(t *testing.T) {
	var gotToken, gotCookie string
	server := newShareServer(t, nil, nil, func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.URL.Query().Get("jsToken")
		gotCookie = r.Header.Get("Cookie")
		if q := r.URL.Query(); q.Get("app_id") != providerAppID || q.Get("fid_list") != "[99]" {
			t.Errorf("unexpected download query: %s", r.URL.RawQuery)
		}
		fmt.Fprintf(w, `{"errno":0,"dlink":%q}`, unreachableDlink)
	})
	defer server.Close()

	dl, err := newTestStream(server).Resolve(context.Background(), testLink(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotToken != "tok-123" {
		t.Errorf("jsToken = %q, want tok-123", gotToken)
	}
	if !strings.Contains(gotCookie, "browserid=bid-1") {
		t.Errorf("intercepted cookie not forwarded: %q", gotCookie)
	}
	if dl.DirectURL != unreachableDlink {
		t.Errorf("direct URL = %q, want %q", dl.DirectURL, unreachableDlink)
	}
	if dl.Filename != "movie.mp4" || dl.Size != 2048 {
		t.Errorf("metadata = %q/%d, want movie.mp4/2048", dl.Filename, dl.Size)
	}
}

func TestStreamStrategy_MissingTokenIsVerification(t *testing.T) {
	server := newShareServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>please verify you are human</html>`)
	}, nil, nil)
	defer server.Close()

	_, err := newTestStream(server).Resolve(context.Background(), testLink(t))
	var re *internal.ResolveError
	if !errors.As(err, &re) || re.Kind != internal.KindVerificationRequired {
		t.Fatalf("expected KindVerificationRequired, got %v", err)
	}
	if !re.Soft() {
		t.Error("verification challenge must be soft")
	}
}

func TestStreamStrategy_VerificationErrno(t *testing.T) {
	server := newShareServer(t, nil, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"errno":400210,"errmsg":"need verify"}`)
	}, nil)
	defer server.Close()

	_, err := newTestStream(server).Resolve(context.Background(), testLink(t))
	var re *internal.ResolveError
	if !errors.As(err, &re) || re.Kind != internal.KindVerificationRequired {
		t.Fatalf("expected KindVerificationRequired, got %v", err)
	}
	if re.Errno != internal.ErrnoVerificationRequired {
		t.Errorf("errno = %d, want %d", re.Errno, internal.ErrnoVerificationRequired)
	}
}

func TestStreamStrategy_FolderOnlyShare(t *testing.T) {
	server := newShareServer(t, nil, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"errno":0,"shareid":1,"uk":2,"sign":"s","timestamp":3,
			"list":[{"fs_id":7,"isdir":1,"server_filename":"folder"}]}`)
	}, nil)
	defer server.Close()

	_, err := newTestStream(server).Resolve(context.Background(), testLink(t))
	var re *internal.ResolveError
	if !errors.As(err, &re) || re.Kind != internal.KindNotFound {
		t.Fatalf("expected KindNotFound for folder-only share, got %v", err)
	}
}

func TestExtractJsToken(t *testing.T) {
	tests := []struct {
		name string
		page string
		want string
	}{
		{
			name: "plain",
			page: `fn%28%22abc123%22%29`,
			want: "abc123",
		},
		{
			name: "backslash_escaped",
			page: `window.jsToken = "fn\%28\%22abc123\%22\%29"`,
			want: "abc123",
		},
		{
			name: "absent",
			page: `<html>nothing here</html>`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractJsToken(tt.page); got != tt.want {
				t.Errorf("extractJsToken = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRewriteFastCDN(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{
			name: "subdomain_and_route_param",
			url:  "https://dlink7.terabox.com/file/abc?by=themis&sign=x",
			want: "https://d3.terabox.com/file/abc?by=dapunta&sign=x",
		},
		{
			name: "short_subdomain_keeps_scheme",
			url:  "https://s.terabox.com/file/abc",
			want: "https://d3.terabox.com/file/abc",
		},
		{
			name: "no_dotted_host",
			url:  "https://localhost/file",
			want: "https://localhost/file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rewriteFastCDN(tt.url); got != tt.want {
				t.Errorf("rewriteFastCDN(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestPickFile(t *testing.T) {
	tests := []struct {
		name   string
		list   []fileEntry
		wantID int64
	}{
		{
			name: "prefers_video",
			list: []fileEntry{
				{FsID: 1, ServerFilename: "readme.txt"},
				{FsID: 2, ServerFilename: "movie.mkv"},
			},
			wantID: 2,
		},
		{
			name: "falls_back_to_first_file",
			list: []fileEntry{
				{FsID: 1, ServerFilename: "a.txt"},
				{FsID: 2, ServerFilename: "b.txt"},
			},
			wantID: 1,
		},
		{
			name: "skips_directories",
			list: []fileEntry{
				{FsID: 1, IsDir: 1, ServerFilename: "folder"},
				{FsID: 2, ServerFilename: "clip.mp4"},
			},
			wantID: 2,
		},
		{
			name:   "all_directories",
			list:   []fileEntry{{FsID: 1, IsDir: 1}},
			wantID: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pickFile(tt.list)
			if tt.wantID == 0 {
				if got != nil {
					t.Errorf("expected nil, got %+v", got)
				}
				return
			}
			if got == nil || got.FsID != tt.wantID {
				t.Errorf("picked %+v, want fs_id %d", got, tt.wantID)
			}
		})
	}
}
