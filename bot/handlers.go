package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"os"
	"regexp"
	"strings"

	tg "github.com/amarnathcjd/gogram/telegram"

	"terarelay/internal"
	"terarelay/utils"
)

// shareLinkPattern spots a share URL anywhere in a message. The full
// validation happens in the resolution chain; this only decides whether
// a message is worth handling at all.
var shareLinkPattern = regexp.MustCompile(`(?i)https?://(?:www\.)?(?:[a-z0-9-]+\.)?(?:terabox\.com|terabox\.app|terabox\.fun|teraboxapp\.com|1024terabox\.com|1024tera\.com|mirrobox\.com|nephobox\.com|freeterabox\.com|4funbox\.com|4funbox\.co|tibibox\.com|momerybox\.com)/\S+`)

func filterShareLink(m *tg.NewMessage) bool {
	if m.IsCommand() || m.IsForward() {
		return false
	}
	return shareLinkPattern.MatchString(m.Text())
}

func (b *Bot) handleStart(m *tg.NewMessage) error {
	name := html.EscapeString(m.Sender.FirstName)
	response := fmt.Sprintf(`<b>Hello %s.</b>

Send me a Terabox share link and I will resolve a direct download for you, trying several routes until one works.

<b>Supported domains:</b>
<code>%s</code>

Use /help for details.`, name, strings.Join(utils.ShareDomains(), "\n"))

	_, err := m.Reply(response, tg.SendOptions{ParseMode: tg.HTML})
	return err
}

func (b *Bot) handleHelp(m *tg.NewMessage) error {
	response := fmt.Sprintf(`<b>How it works</b>

Send a share link directly, or use <code>/terabox &lt;url&gt;</code>.

The link is resolved through a chain of strategies (<code>%s</code>); when one is blocked the next takes over. On success you get the file plus direct and streaming links.

Folders are not supported; the first video (or first file) of the share is picked.`, strings.Join(b.chain.Strategies(), " → "))

	_, err := m.Reply(response, tg.SendOptions{ParseMode: tg.HTML})
	return err
}

func (b *Bot) handleCommand(m *tg.NewMessage) error {
	fields := strings.Fields(m.Args())
	if len(fields) == 0 {
		_, err := m.Reply("Usage: <code>/terabox &lt;share url&gt; [list]</code>", tg.SendOptions{ParseMode: tg.HTML})
		return err
	}
	// A trailing "list" asks for links only, no upload.
	linksOnly := len(fields) > 1 && strings.EqualFold(fields[len(fields)-1], "list")
	return b.serve(m, fields[0], linksOnly)
}

func (b *Bot) handleMessage(m *tg.NewMessage) error {
	link := shareLinkPattern.FindString(m.Text())
	if link == "" {
		return nil
	}
	return b.serve(m, link, false)
}

// serve resolves one link and replies with the outcome: the uploaded
// file when the fetch succeeds, otherwise the links, otherwise the
// failure message. linksOnly skips the fetch and replies with links.
func (b *Bot) serve(m *tg.NewMessage, rawURL string, linksOnly bool) error {
	status, err := m.Reply(fmt.Sprintf("Resolving...\n\n<b>%s</b>", html.EscapeString(rawURL)), tg.SendOptions{
		ParseMode: tg.HTML,
	})
	if err != nil {
		if handleFloodWait(err) {
			status, err = m.Reply("Resolving...", tg.SendOptions{ParseMode: tg.HTML})
		}
		if err != nil {
			return fmt.Errorf("sending status reply: %w", err)
		}
	}

	dl, err := b.chain.Resolve(context.Background(), rawURL)
	if err != nil {
		_, editErr := status.Edit(failureText(err), tg.SendOptions{ParseMode: tg.HTML})
		if editErr != nil {
			internal.LogWarn("editing failure reply: %v", editErr)
		}
		return nil
	}

	keyboard := tg.NewKeyboard().AddRow(
		tg.Button.URL("Direct link", dl.DirectURL),
	)
	if dl.StreamURL != "" {
		keyboard.AddRow(tg.Button.URL("Stream", dl.StreamURL))
	}

	caption := fmt.Sprintf("<b>%s</b>\n%s | via %s",
		html.EscapeString(dl.Filename), utils.FormatBytes(dl.Size), dl.Strategy)

	if linksOnly {
		_, err = status.Edit(caption, tg.SendOptions{
			ParseMode:   tg.HTML,
			ReplyMarkup: keyboard.Build(),
			LinkPreview: false,
		})
		return err
	}

	fetched, fetchErr := b.fetcher.Fetch(context.Background(), dl)
	if fetchErr != nil {
		internal.LogWarn("fetch failed for %s, sending links only: %v", dl.Filename, fetchErr)
		_, err = status.Edit(caption, tg.SendOptions{
			ParseMode:   tg.HTML,
			ReplyMarkup: keyboard.Build(),
			LinkPreview: false,
		})
		return err
	}
	defer os.Remove(fetched.Path)

	_, err = status.Edit(caption, tg.SendOptions{
		Media:       fetched.Path,
		MimeType:    fetched.MimeType,
		ParseMode:   tg.HTML,
		ReplyMarkup: keyboard.Build(),
	})
	if err != nil && handleFloodWait(err) {
		_, err = status.Edit(caption, tg.SendOptions{
			Media:     fetched.Path,
			MimeType:  fetched.MimeType,
			ParseMode: tg.HTML,
		})
	}
	if err != nil {
		return fmt.Errorf("uploading %s: %w", fetched.Filename, err)
	}
	return nil
}

// failureText maps a resolution failure to a user-facing reply. Strategy
// internals stay in the logs.
func failureText(err error) string {
	var exhausted *internal.ExhaustedError
	if errors.As(err, &exhausted) {
		return exhausted.UserMessage()
	}
	var re *internal.ResolveError
	if errors.As(err, &re) && re.Kind == internal.KindInvalidLink {
		return "That does not look like a Terabox share link. Send a link like <code>https://terabox.com/s/1abc...</code>"
	}
	return "Could not resolve this link right now. Try again in a moment."
}
