package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"terarelay/internal"
)

// fakeStrategy scripts one strategy outcome and records whether it ran.
type fakeStrategy struct {
	name   string
	result *internal.ResolvedDownload
	err    error
	calls  int
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Resolve(ctx context.Context, link internal.ShareLink) (*internal.ResolvedDownload, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func success(name string) *fakeStrategy {
	return &fakeStrategy{
		name:   name,
		result: &internal.ResolvedDownload{DirectURL: "https://cdn.example.com/" + name, Filename: "movie.mp4", Size: 42},
	}
}

func failing(name string, kind internal.ErrorKind) *fakeStrategy {
	return &fakeStrategy{name: name, err: internal.NewResolveError(kind, name+" failed", nil)}
}

const testURL = "https://terabox.com/s/1AbC123"

func TestChain_FirstSuccessStops(t *testing.T) {
	first := success(internal.StrategyStream)
	second := success(internal.StrategyExternal)
	chain := NewChain([]internal.Strategy{first, second}, time.Second)

	dl, err := chain.Resolve(context.Background(), testURL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dl.Strategy != internal.StrategyStream {
		t.Errorf("winning strategy = %q, want %q", dl.Strategy, internal.StrategyStream)
	}
	if second.calls != 0 {
		t.Error("later strategies must not run after a success")
	}
}

func TestChain_SoftFailureFallsThrough(t *testing.T) {
	first := failing(internal.StrategyStream, internal.KindVerificationRequired)
	second := failing(internal.StrategyExternal, internal.KindNetwork)
	third := success(internal.StrategySession)
	chain := NewChain([]internal.Strategy{first, second, third}, time.Second)

	dl, err := chain.Resolve(context.Background(), testURL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dl.Strategy != internal.StrategySession {
		t.Errorf("winning strategy = %q, want %q", dl.Strategy, internal.StrategySession)
	}
	if first.calls != 1 || second.calls != 1 {
		t.Errorf("every earlier strategy must run exactly once, got %d and %d", first.calls, second.calls)
	}
}

func TestChain_AllFailReturnsExhausted(t *testing.T) {
	strategies := []internal.Strategy{
		failing(internal.StrategyStream, internal.KindVerificationRequired),
		failing(internal.StrategyExternal, internal.KindProvider),
		failing(internal.StrategySession, internal.KindAuthExpired),
	}
	chain := NewChain(strategies, time.Second)

	_, err := chain.Resolve(context.Background(), testURL)
	var exhausted *internal.ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected *ExhaustedError, got %T: %v", err, err)
	}
	if len(exhausted.Attempts) != 3 {
		t.Errorf("attempts = %d, want 3", len(exhausted.Attempts))
	}
	for i, a := range exhausted.Attempts {
		if a.Err == nil {
			t.Errorf("attempt %d has no error recorded", i)
		}
	}
}

func TestChain_InvalidLinkNeverRunsStrategies(t *testing.T) {
	strategy := success(internal.StrategyStream)
	chain := NewChain([]internal.Strategy{strategy}, time.Second)

	_, err := chain.Resolve(context.Background(), "https://example.com/not-a-share")
	var re *internal.ResolveError
	if !errors.As(err, &re) || re.Kind != internal.KindInvalidLink {
		t.Fatalf("expected KindInvalidLink, got %v", err)
	}
	if strategy.calls != 0 {
		t.Error("strategies must not run for invalid input")
	}
}

func TestChain_UnclassifiedErrorIsSoft(t *testing.T) {
	first := &fakeStrategy{name: internal.StrategyStream, err: errors.New("boom")}
	second := success(internal.StrategyExternal)
	chain := NewChain([]internal.Strategy{first, second}, time.Second)

	dl, err := chain.Resolve(context.Background(), testURL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dl.Strategy != internal.StrategyExternal {
		t.Errorf("chain must fall through an unclassified failure, winner = %q", dl.Strategy)
	}
}

func TestChain_EmptyResultCountsAsFailure(t *testing.T) {
	first := &fakeStrategy{name: internal.StrategyStream, result: &internal.ResolvedDownload{}}
	second := success(internal.StrategyExternal)
	chain := NewChain([]internal.Strategy{first, second}, time.Second)

	dl, err := chain.Resolve(context.Background(), testURL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dl.Strategy != internal.StrategyExternal {
		t.Errorf("a result without a direct URL must not win, winner = %q", dl.Strategy)
	}
}

func TestChain_ResolveIsRepeatable(t *testing.T) {
	strategy := success(internal.StrategyStream)
	chain := NewChain([]internal.Strategy{strategy}, time.Second)

	first, err := chain.Resolve(context.Background(), testURL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := chain.Resolve(context.Background(), testURL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.DirectURL != second.DirectURL || first.Strategy != second.Strategy {
		t.Errorf("repeated resolution diverged: %+v vs %+v", first, second)
	}
	if strategy.calls != 2 {
		t.Errorf("expected one attempt per call, got %d", strategy.calls)
	}
}

// blockingStrategy hangs until its context is cancelled, the way a
// stalled provider call would.
type blockingStrategy struct {
	name string
}

func (b *blockingStrategy) Name() string { return b.name }

func (b *blockingStrategy) Resolve(ctx context.Context, link internal.ShareLink) (*internal.ResolvedDownload, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestChain_TimeoutBoundsEachAttempt(t *testing.T) {
	timeout := 100 * time.Millisecond
	chain := NewChain([]internal.Strategy{&blockingStrategy{name: internal.StrategyStream}}, timeout)

	start := time.Now()
	_, err := chain.Resolve(context.Background(), testURL)
	elapsed := time.Since(start)

	var exhausted *internal.ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected *ExhaustedError, got %T: %v", err, err)
	}
	if len(exhausted.Attempts) != 1 {
		t.Fatalf("attempts = %d, want 1", len(exhausted.Attempts))
	}
	if !errors.Is(exhausted.Attempts[0].Err, context.DeadlineExceeded) {
		t.Errorf("attempt error = %v, want a deadline", exhausted.Attempts[0].Err)
	}
	if elapsed > 10*timeout {
		t.Errorf("attempt ran %s, configured timeout is %s", elapsed, timeout)
	}
}

func TestChain_CancelledContextStops(t *testing.T) {
	strategy := success(internal.StrategyStream)
	chain := NewChain([]internal.Strategy{strategy}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := chain.Resolve(ctx, testURL)
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if strategy.calls != 0 {
		t.Error("strategies must not run on a cancelled context")
	}
}

func TestNew_SkipsUnavailableStrategies(t *testing.T) {
	settings := &internal.Settings{
		StrategyOrder:   []string{internal.StrategySession, internal.StrategyStream, internal.StrategyExternal},
		StrategyTimeout: time.Second,
		ResolverAPIs:    nil,
		// Credential nil: session cannot run.
	}

	chain := New(settings)
	got := chain.Strategies()
	if len(got) != 1 || got[0] != internal.StrategyStream {
		t.Errorf("expected only the stream strategy, got %v", got)
	}
}

func TestNew_KeepsConfiguredOrder(t *testing.T) {
	settings := &internal.Settings{
		StrategyOrder:   []string{internal.StrategyExternal, internal.StrategyStream},
		StrategyTimeout: time.Second,
		ResolverAPIs:    internal.DefaultResolverAPIs(),
	}

	chain := New(settings)
	got := chain.Strategies()
	want := []string{internal.StrategyExternal, internal.StrategyStream}
	if len(got) != len(want) {
		t.Fatalf("strategies = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("strategies = %v, want %v", got, want)
			break
		}
	}
}
