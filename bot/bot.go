package bot

import (
	"fmt"
	"time"

	tg "github.com/amarnathcjd/gogram/telegram"

	"terarelay/internal"
	"terarelay/resolver"
)

// Bot wires the Telegram transport to the resolution chain. One instance
// serves all chats; per-message state lives in the handlers.
type Bot struct {
	client   *tg.Client
	chain    *resolver.Chain
	fetcher  *resolver.Fetcher
	settings *internal.Settings
	started  time.Time
}

// New builds and logs in the bot client. It fails when the Telegram
// credentials are missing or rejected; resolver configuration problems
// were already downgraded to warnings at load time.
func New(settings *internal.Settings, chain *resolver.Chain, fetcher *resolver.Fetcher) (*Bot, error) {
	if settings.BotToken == "" || settings.AppID == 0 || settings.AppHash == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN, API_ID and API_HASH must all be set")
	}

	client, err := tg.NewClient(tg.ClientConfig{
		AppID:       settings.AppID,
		AppHash:     settings.AppHash,
		SessionName: "terarelay",
	})
	if err != nil {
		return nil, fmt.Errorf("creating telegram client: %w", err)
	}

	return &Bot{
		client:   client,
		chain:    chain,
		fetcher:  fetcher,
		settings: settings,
		started:  time.Now(),
	}, nil
}

// Run connects, registers handlers and blocks until the client stops.
func (b *Bot) Run() error {
	if _, err := b.client.Conn(); err != nil {
		return fmt.Errorf("connecting to telegram: %w", err)
	}
	if err := b.client.LoginBot(b.settings.BotToken); err != nil {
		return fmt.Errorf("bot login: %w", err)
	}

	me, err := b.client.GetMe()
	if err != nil {
		return fmt.Errorf("fetching bot identity: %w", err)
	}
	internal.LogInfo("logged in as @%s, strategies: %v, startup %s",
		me.Username, b.chain.Strategies(), time.Since(b.started).Round(time.Millisecond))

	b.client.On("command:start", b.handleStart)
	b.client.On("command:help", b.handleHelp)
	b.client.On("command:terabox", b.handleCommand)
	b.client.On("message:*", b.handleMessage, tg.FilterFunc(filterShareLink))

	b.client.Idle()
	internal.LogInfo("bot stopped")
	return nil
}

// handleFloodWait sleeps through Telegram's flood-wait responses instead
// of surfacing them as errors.
func handleFloodWait(err error) bool {
	if wait := tg.GetFloodWait(err); wait > 0 {
		internal.LogWarn("flood wait from telegram, sleeping %ds", wait)
		time.Sleep(time.Duration(wait) * time.Second)
		return true
	}
	return false
}
