package resolver

import (
	"context"
	"errors"
	"time"

	"terarelay/internal"
	"terarelay/utils"
)

// SessionStrategy resolves shares with a stored authenticated session.
// It walks the same two API calls as the stream strategy but presents
// the exported cookies instead of a page-intercepted token, so it can
// reach shares that refuse anonymous clients.
type SessionStrategy struct {
	api  *shareAPI
	cred *internal.Credential
}

// NewSessionStrategy creates the cookie-session strategy. The credential
// must already have passed ValidateCredential.
func NewSessionStrategy(client *utils.HTTPClient, cred *internal.Credential) *SessionStrategy {
	return &SessionStrategy{api: newShareAPI(client), cred: cred}
}

func (s *SessionStrategy) Name() string { return internal.StrategySession }

// Resolve requests share metadata and a direct link under the stored
// session. Auth rejections surface as soft errors so the chain can keep
// going; they also usually mean the export needs refreshing.
func (s *SessionStrategy) Resolve(ctx context.Context, link internal.ShareLink) (*internal.ResolvedDownload, error) {
	cookieHeader := CookieHeader(s.cred)

	info, err := s.api.shortURLInfo(ctx, link, cookieHeader)
	if err != nil {
		return nil, s.noteAuthFailure(err)
	}

	file := pickFile(info.List)
	if file == nil {
		return nil, internal.NewResolveError(internal.KindNotFound, "share contains only folders", nil)
	}

	dlink, err := s.api.requestDlink(ctx, link, info, file, "", cookieHeader)
	if err != nil {
		return nil, s.noteAuthFailure(err)
	}

	return &internal.ResolvedDownload{
		DirectURL:  s.api.resolveFastCDN(ctx, dlink),
		Filename:   file.ServerFilename,
		Size:       file.Size,
		ResolvedAt: time.Now(),
	}, nil
}

func (s *SessionStrategy) noteAuthFailure(err error) error {
	var re *internal.ResolveError
	if errors.As(err, &re) && re.Kind == internal.KindAuthExpired {
		internal.LogWarn("session cookies rejected by provider, re-export them from a logged-in browser")
	}
	return err
}
