package resolver

import (
	"context"
	"errors"
	"time"

	"terarelay/internal"
	"terarelay/utils"
)

// Chain runs the configured strategies in order until one yields a
// direct link. Soft failures fall through to the next strategy; the only
// hard failure is a malformed link, which is rejected before any
// strategy runs.
type Chain struct {
	validator  *utils.ShareLinkValidator
	strategies []internal.Strategy
	timeout    time.Duration
}

// New assembles the chain from settings. Unavailable strategies are
// skipped at construction time: the session strategy needs a usable
// credential, the external strategy needs at least one endpoint.
func New(settings *internal.Settings) *Chain {
	client := utils.NewHTTPClientWithConfig(&utils.HTTPClientConfig{
		Timeout: settings.StrategyTimeout,
		Proxy:   settings.Proxy,
	})

	var strategies []internal.Strategy
	for _, name := range settings.StrategyOrder {
		switch name {
		case internal.StrategyStream:
			strategies = append(strategies, NewStreamStrategy(client))
		case internal.StrategyExternal:
			if len(settings.ResolverAPIs) == 0 {
				internal.LogWarn("external strategy configured but no resolver endpoints set, skipping")
				continue
			}
			strategies = append(strategies, NewExternalAPIStrategy(client, settings.ResolverAPIs))
		case internal.StrategySession:
			if err := ValidateCredential(settings.Credential); err != nil {
				internal.LogWarn("session strategy disabled: %v", err)
				continue
			}
			strategies = append(strategies, NewSessionStrategy(client, settings.Credential))
		}
	}

	return &Chain{
		validator:  utils.NewShareLinkValidator(),
		strategies: strategies,
		timeout:    settings.StrategyTimeout,
	}
}

// NewChain builds a chain over explicit strategies, mainly for tests and
// embedding.
func NewChain(strategies []internal.Strategy, timeout time.Duration) *Chain {
	return &Chain{
		validator:  utils.NewShareLinkValidator(),
		strategies: strategies,
		timeout:    timeout,
	}
}

// Strategies returns the names of the strategies the chain will attempt,
// in order.
func (c *Chain) Strategies() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return names
}

// Resolve validates the raw URL and walks the strategies. It returns the
// first success, the hard error that stopped the chain, or an
// ExhaustedError aggregating every attempt.
func (c *Chain) Resolve(ctx context.Context, rawURL string) (*internal.ResolvedDownload, error) {
	link, err := c.validator.Normalize(rawURL)
	if err != nil {
		internal.LogDebug("rejected input %q: %v", rawURL, err)
		return nil, err
	}

	var attempts []internal.Attempt
	for _, strategy := range c.strategies {
		if ctx.Err() != nil {
			return nil, internal.NewNetworkError("resolution cancelled", ctx.Err())
		}

		start := time.Now()
		dl, err := c.attempt(ctx, strategy, link)
		elapsed := time.Since(start)

		if err == nil {
			dl.Strategy = strategy.Name()
			internal.LogInfo("resolved %s via %s in %s", link.Surl, strategy.Name(), elapsed.Round(time.Millisecond))
			return dl, nil
		}

		attempts = append(attempts, internal.Attempt{Strategy: strategy.Name(), Err: err, Elapsed: elapsed})
		internal.LogInfo("strategy %s failed for %s after %s: %v", strategy.Name(), link.Surl, elapsed.Round(time.Millisecond), err)

		var re *internal.ResolveError
		if errors.As(err, &re) && !re.Soft() {
			return nil, err
		}
	}

	exhausted := &internal.ExhaustedError{Link: link.Raw, Attempts: attempts}
	internal.LogWarn("giving up on %s: %v", link.Surl, exhausted)
	return nil, exhausted
}

// attempt runs one strategy under its own deadline. Errors that are not
// already classified count as soft network failures.
func (c *Chain) attempt(ctx context.Context, strategy internal.Strategy, link internal.ShareLink) (*internal.ResolvedDownload, error) {
	attemptCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	dl, err := strategy.Resolve(attemptCtx, link)
	if err != nil {
		var re *internal.ResolveError
		if !errors.As(err, &re) {
			err = internal.NewNetworkError(strategy.Name(), err)
		}
		return nil, err
	}
	if dl == nil || dl.DirectURL == "" {
		return nil, internal.NewResolveError(internal.KindProvider, "strategy returned no direct link", nil)
	}
	return dl, nil
}
