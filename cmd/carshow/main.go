package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/karmankarshows/carshow/internal/app"
	"github.com/karmankarshows/carshow/internal/auth"
	"github.com/karmankarshows/carshow/internal/config"
	"github.com/karmankarshows/carshow/internal/logger"
)

// ANSI escape codes
const (
	reset  = "\033[0m"
	yellow = "\033[33m"
	green  = "\033[32m"
	cyan   = "\033[36m"
	bold   = "\033[1m"
)

var (
	version = "dev"
)

// showBanner prints the startup box with the show being served.
func showBanner(cfg *config.Config) {
	width := 62
	border := strings.Repeat("═", width)
	lines := []string{
		"",
		"  KARMAN CHARITY CAR SHOW",
		"  " + cfg.Show.Title,
		"",
	}

	fmt.Printf("\n  %s╔%s╗%s\n", cyan, border, reset)
	for _, line := range lines {
		if len([]rune(line)) > width {
			line = string([]rune(line)[:width])
		}
		line += strings.Repeat(" ", width-len([]rune(line)))
		fmt.Printf("  %s║%s%s%s║%s\n", cyan, yellow, line, cyan, reset)
	}
	fmt.Printf("  %s╚%s╝%s\n\n", cyan, border, reset)
}

// cycleLogLevel cycles through debug -> info -> warn -> error
func cycleLogLevel(appLog *logger.SlogLogger) {
	next := "info"
	switch appLog.GetLevel().String() {
	case "DEBUG":
		next = "info"
	case "INFO":
		next = "warn"
	case "WARN":
		next = "error"
	case "ERROR":
		next = "debug"
	}

	appLog.SetLevel(logger.ParseLevel(next))
	fmt.Printf("%sLog level: %s%s%s\n", green, yellow, next, reset)
}

// toggleHTTPLogging flips chi request logging on or off.
func toggleHTTPLogging(appLog *logger.SlogLogger) {
	if appLog.IsHTTPLoggingEnabled() {
		appLog.DisableHTTPLogging()
		fmt.Printf("%sHTTP logging disabled%s\n", yellow, reset)
		return
	}
	appLog.EnableHTTPLogging()
	fmt.Printf("%sHTTP logging enabled%s\n", green, reset)
}

// printKeyboardHelp displays all available keyboard shortcuts
func printKeyboardHelp() {
	fmt.Printf("\n%s%s  Keyboard Shortcuts:%s\n", bold, green, reset)
	fmt.Printf("    %sh%s      - Toggle HTTP request logging\n", cyan, reset)
	fmt.Printf("    %sl%s      - Cycle log level (debug → info → warn → error)\n", cyan, reset)
	fmt.Printf("    %su%s      - Print the public URL\n", cyan, reset)
	fmt.Printf("    %sq%s      - Quit server\n", cyan, reset)
	fmt.Printf("    %s?%s      - Show this help\n\n", cyan, reset)
}

// shortcuts holds what the keyboard listener acts on.
type shortcuts struct {
	log     *logger.SlogLogger
	baseURL string
	stop    context.CancelFunc
}

// handle runs the action bound to key. It reports false once the listener
// should exit.
func (s shortcuts) handle(key string) bool {
	switch key {
	case "h":
		toggleHTTPLogging(s.log)
	case "l":
		cycleLogLevel(s.log)
	case "u":
		fmt.Printf("%sPublic URL: %s%s%s\n", green, yellow, s.baseURL, reset)
	case "q", "\x03": // q or Ctrl+C
		fmt.Printf("%sShutting down server...%s\n", yellow, reset)
		s.stop()
		return false
	case "?":
		printKeyboardHelp()
	}
	return true
}

func main() {
	configFile := flag.String("config", "", "YAML config file (environment overrides apply on top)")
	logLevel := flag.String("loglevel", "", "Log level (debug, info, warn, error); overrides config")
	noKeyboard := flag.Bool("nokeyboard", false, "Disable keyboard shortcuts")
	showVersion := flag.Bool("version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `carshow - charity car show voting server

Usage:
  carshow [options]

Options:
  -config file   YAML config file (default: defaults plus environment)
  -loglevel str  Log level: debug, info, warn, error
  -nokeyboard    Disable keyboard shortcuts
  -version       Show version and exit
  -help          Show this help message

Environment:
  DB_PATH, ADMIN_PASSWORD, STRIPE_SECRET_KEY, STRIPE_WEBHOOK_SECRET,
  BASE_URL, VOTING_END, VOTING_TIMEZONE, PORT, LOG_LEVEL

Examples:
  carshow -config carshow.yaml
  STRIPE_SECRET_KEY=sk_live_... carshow -config prod.yaml -nokeyboard

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("carshow %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	appLog := logger.NewWithOptions(logger.Options{
		Level: logger.ParseLevel(cfg.Log.Level),
		JSON:  cfg.Log.JSON,
	})
	if cfg.Log.HTTP {
		appLog.EnableHTTPLogging()
	}

	showBanner(cfg)

	// Setup admin authentication
	password := cfg.Admin.Password
	generated := password == ""
	if generated {
		password = auth.GeneratePassword()
	}
	var authOpts []auth.Option
	if cfg.Admin.SessionTTL > 0 {
		authOpts = append(authOpts, auth.WithSessionTTL(cfg.Admin.SessionTTL))
	}
	if cfg.Admin.IdleTimeout > 0 {
		authOpts = append(authOpts, auth.WithIdleTimeout(cfg.Admin.IdleTimeout))
	}
	adminAuth := auth.New(password, authOpts...)

	a, err := app.New(cfg, appLog, adminAuth)
	if err != nil {
		appLog.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if generated {
		appLog.Info("Admin password", "password", password)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !*noKeyboard {
		printKeyboardHelp()
		go listenForKeyboard(shortcuts{log: appLog, baseURL: a.BaseURL(), stop: stop})
	}

	if err := a.Run(ctx); err != nil {
		appLog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}
