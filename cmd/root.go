package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"

	"terarelay/bot"
	"terarelay/internal"
	"terarelay/resolver"
	"terarelay/utils"
)

var (
	cookiesPath string
	proxyURL    string
	orderFlag   string
	timeoutSecs int
	rateLimit   string
	outputDir   string
	quiet       bool
	debug       bool
	logLevel    string
	logFile     string

	settings *internal.Settings
)

var rootCmd = &cobra.Command{
	Use:     "terarelay",
	Short:   "Resolve Terabox share links through a chain of fallback strategies",
	Version: "v1.0.0",
	Long: `TeraRelay turns Terabox share links into direct download URLs. Each link
is tried through several independent routes (share-page interception,
third-party resolver APIs, an authenticated cookie session) until one
succeeds.

Examples:
  terarelay resolve https://terabox.com/s/1AbC123
  terarelay get -r 5M https://terabox.com/s/1AbC123
  terarelay bot

Environment Variables:
  TELEGRAM_BOT_TOKEN    Bot token (bot mode)
  API_ID, API_HASH      Telegram API credentials (bot mode)
  TERABOX_COOKIES       Browser cookie export (JSON array)
  PROXY_URL             http:// or socks5:// forward proxy
  STRATEGY_ORDER        Comma-separated strategy priority
  TERARELAY_TIMEOUT     Per-strategy timeout in seconds`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loadConfiguration()
		if err := internal.InitLogger(settings); err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		for _, w := range settings.Warnings {
			internal.LogWarn("%s", w)
		}
		internal.LogDebug("strategy order: %v, timeout: %s", settings.StrategyOrder, settings.StrategyTimeout)
		return nil
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <URL>",
	Short: "Resolve a share link and print the direct URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		chain := resolver.New(settings)
		dl, err := chain.Resolve(ctx, args[0])
		if err != nil {
			return err
		}

		if quiet {
			fmt.Println(dl.DirectURL)
			return nil
		}
		fmt.Printf("File:     %s\n", dl.Filename)
		fmt.Printf("Size:     %s\n", utils.FormatBytes(dl.Size))
		fmt.Printf("Strategy: %s\n", dl.Strategy)
		fmt.Printf("URL:      %s\n", dl.DirectURL)
		if dl.StreamURL != "" {
			fmt.Printf("Stream:   %s\n", dl.StreamURL)
		}
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <URL>",
	Short: "Resolve a share link and download the file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		var limiter internal.RateLimiter
		if rateLimit != "" {
			bytesPerSec, err := utils.ParseRateLimit(rateLimit)
			if err != nil {
				return fmt.Errorf("invalid rate limit %q: %w", rateLimit, err)
			}
			limiter = utils.NewTokenBucketLimiter(bytesPerSec)
		}

		chain := resolver.New(settings)
		dl, err := chain.Resolve(ctx, args[0])
		if err != nil {
			return err
		}
		if !quiet {
			fmt.Printf("Resolved %s (%s) via %s\n", dl.Filename, utils.FormatBytes(dl.Size), dl.Strategy)
		}

		fetcher := resolver.NewFetcher(settings, limiter)
		result, err := fetcher.Fetch(ctx, dl)
		if err != nil {
			return err
		}
		fmt.Printf("Saved to %s\n", result.Path)
		return nil
	},
}

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram bot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		chain := resolver.New(settings)
		fetcher := resolver.NewFetcher(settings, nil)
		b, err := bot.New(settings, chain, fetcher)
		if err != nil {
			return err
		}
		return b.Run()
	},
}

// loadConfiguration reads the environment and layers CLI flags on top.
func loadConfiguration() {
	settings = internal.LoadSettings()

	if cookiesPath != "" {
		data, err := os.ReadFile(cookiesPath)
		if err != nil {
			settings.Warnings = append(settings.Warnings,
				fmt.Sprintf("cookie file unreadable, cookie authentication disabled: %v", err))
		} else if cred, err := internal.ParseCookieJSON(data); err != nil {
			settings.Warnings = append(settings.Warnings,
				fmt.Sprintf("cookie file unusable, cookie authentication disabled: %v", err))
		} else {
			settings.Credential = cred
		}
	}

	if proxyURL != "" {
		proxy, err := internal.ParseProxyURL(proxyURL)
		if err != nil {
			settings.Warnings = append(settings.Warnings,
				fmt.Sprintf("proxy flag unusable, proceeding without proxy: %v", err))
		} else {
			settings.Proxy = proxy
		}
	}

	if orderFlag != "" {
		order, err := internal.ParseStrategyOrder(orderFlag)
		if err != nil {
			settings.Warnings = append(settings.Warnings,
				fmt.Sprintf("order flag unusable, keeping default order: %v", err))
		} else {
			settings.StrategyOrder = order
		}
	}

	if timeoutSecs > 0 {
		settings.StrategyTimeout = time.Duration(timeoutSecs) * time.Second
	}
	if outputDir != "" {
		settings.CacheDir = outputDir
	}
	if debug {
		settings.Debug = true
		settings.LogLevel = "debug"
	}
	if quiet {
		settings.Quiet = true
	}
	if logLevel != "" {
		settings.LogLevel = logLevel
	}
	if logFile != "" {
		settings.LogFile = logFile
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		internal.LogInfo("received signal %v, shutting down", sig)
		cancel()
	}()
	return ctx, cancel
}

func init() {
	rootCmd.AddCommand(resolveCmd, getCmd, botCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cookiesPath, "cookies", "c", "", "Path to a JSON cookie export (env: TERABOX_COOKIES holds the JSON itself)")
	pf.StringVar(&proxyURL, "proxy", "", "http:// or socks5:// proxy for provider traffic (env: PROXY_URL)")
	pf.StringVar(&orderFlag, "order", "", "Comma-separated strategy priority (env: STRATEGY_ORDER)")
	pf.IntVar(&timeoutSecs, "timeout", 0, "Per-strategy timeout in seconds (env: TERARELAY_TIMEOUT)")
	pf.BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")
	pf.BoolVarP(&debug, "debug", "d", false, "Enable debug logging (env: TERARELAY_DEBUG)")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (env: TERARELAY_LOG_LEVEL)")
	pf.StringVar(&logFile, "log-file", "", "Write logs to a file instead of stderr (env: TERARELAY_LOG_FILE)")

	getCmd.Flags().StringVarP(&rateLimit, "limit-rate", "r", "", "Bandwidth limit, e.g. 5M for 5 MB/s")
	getCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory to save into (env: TERARELAY_CACHE_DIR)")
}

func Execute() error {
	return rootCmd.Execute()
}
