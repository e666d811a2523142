package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/shazow/simplewifi/internal/config"
	"github.com/shazow/simplewifi/internal/log"
	"github.com/shazow/simplewifi/wifi"
)

var (
	// Version is the version of the application. It is set at build time.
	Version string = "dev"
)

func main() {
	var (
		rootFlagSet = flag.NewFlagSet("simplewifi", flag.ExitOnError)
		configPath  = rootFlagSet.String("config", "", "path to settings toml file (env: SIMPLEWIFI_CONFIG)")
		backendName = rootFlagSet.String("backend", "", "wifi backend, overrides the settings file (env: SIMPLEWIFI_BACKEND)")
		verbose     = rootFlagSet.Bool("verbose", false, "log debug messages (env: SIMPLEWIFI_VERBOSE)")
		version     = rootFlagSet.Bool("version", false, "display version")
	)

	// Set up before any subcommand runs; see setup below.
	var (
		client *wifi.Client
		cfg    config.Config
	)

	listFlagSet := flag.NewFlagSet("list", flag.ExitOnError)
	listJSON := listFlagSet.Bool("json", false, "output in JSON format")
	listSort := listFlagSet.Bool("sort", false, "sort by connection, signal strength and name")
	listCmd := &ffcli.Command{
		Name:      "list",
		ShortHelp: "List visible wifi networks",
		FlagSet:   listFlagSet,
		Exec: func(ctx context.Context, args []string) error {
			return runList(os.Stdout, client, *listJSON, *listSort, cfg.Colors)
		},
	}

	showCmd := &ffcli.Command{
		Name:       "show",
		ShortUsage: "simplewifi show <ssid>",
		ShortHelp:  "Show a wifi network",
		Exec: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("show requires an ssid")
			}
			return runShow(os.Stdout, client, args[0])
		},
	}

	connectFlagSet := flag.NewFlagSet("connect", flag.ExitOnError)
	connectPassword := connectFlagSet.String("password", "", "password for the network")
	connectOverwrite := connectFlagSet.Bool("overwrite", false, "replace the stored profile")
	connectCmd := &ffcli.Command{
		Name:       "connect",
		ShortUsage: "simplewifi connect [-password <password>] [-overwrite] <ssid>",
		ShortHelp:  "Connect to a wifi network",
		FlagSet:    connectFlagSet,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("connect requires an ssid")
			}
			return runConnect(os.Stdout, client, args[0], *connectPassword, *connectOverwrite)
		},
	}

	disconnectCmd := &ffcli.Command{
		Name:      "disconnect",
		ShortHelp: "Disconnect every adapter",
		Exec: func(ctx context.Context, args []string) error {
			return runDisconnect(os.Stdout, client)
		},
	}

	statusCmd := &ffcli.Command{
		Name:      "status",
		ShortHelp: "Show the connection status of each adapter",
		Exec: func(ctx context.Context, args []string) error {
			return runStatus(os.Stdout, client)
		},
	}

	forgetCmd := &ffcli.Command{
		Name:       "forget",
		ShortUsage: "simplewifi forget <ssid>",
		ShortHelp:  "Delete the stored profile of a wifi network",
		Exec: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("forget requires an ssid")
			}
			return runForget(os.Stdout, client, args[0])
		},
	}

	profileCmd := &ffcli.Command{
		Name:       "profile",
		ShortUsage: "simplewifi profile <ssid>",
		ShortHelp:  "Print the stored profile of a wifi network",
		Exec: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("profile requires an ssid")
			}
			return runProfile(os.Stdout, client, args[0])
		},
	}

	qrFlagSet := flag.NewFlagSet("qr", flag.ExitOnError)
	qrPassword := qrFlagSet.String("password", "", "password to share instead of the stored one")
	qrCmd := &ffcli.Command{
		Name:       "qr",
		ShortUsage: "simplewifi qr [-password <password>] <ssid>",
		ShortHelp:  "Show a QR code for joining a wifi network",
		FlagSet:    qrFlagSet,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("qr requires an ssid")
			}
			return runQR(os.Stdout, client, args[0], *qrPassword)
		},
	}

	watchCmd := &ffcli.Command{
		Name:      "watch",
		ShortHelp: "Print wifi notifications until interrupted",
		Exec: func(ctx context.Context, args []string) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
			defer stop()

			logs := make(chan slog.Record, 16)
			log.SetOutput(logs)
			defer log.SetOutput(nil)
			return runWatch(ctx, os.Stdout, client, logs)
		},
	}

	root := &ffcli.Command{
		ShortUsage: "simplewifi [flags] <subcommand> [args...]",
		FlagSet:    rootFlagSet,
		Options:    []ff.Option{ff.WithEnvVarPrefix("SIMPLEWIFI")},
		Subcommands: []*ffcli.Command{
			listCmd, showCmd, connectCmd, disconnectCmd, statusCmd,
			forgetCmd, profileCmd, qrCmd, watchCmd,
		},
		Exec: func(ctx context.Context, args []string) error {
			return flag.ErrHelp
		},
	}

	if err := root.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error parsing flags: %v\n", err)
		os.Exit(1)
	}

	if *version {
		fmt.Println(Version)
		os.Exit(0)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := log.Init(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var err error
	cfg, err = loadConfig(*configPath, *backendName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading settings: %v\n", err)
		os.Exit(1)
	}

	var closeClient func()
	client, closeClient = openClient(logger, cfg, GetProvider)

	err = root.Run(context.Background())
	closeClient()
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			root.FlagSet.Usage()
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// openClient builds the Client over the configured backend. A backend that
// cannot be opened yields an unavailable Client. The returned function
// closes the Client and then the backend.
func openClient(logger *slog.Logger, cfg config.Config, open func(*slog.Logger, string) (wifi.Provider, error)) (*wifi.Client, func()) {
	provider, err := open(logger, cfg.Backend)
	if err != nil {
		provider = wifi.UnavailableProvider(err)
	}
	client := wifi.New(provider,
		wifi.WithLogger(logger),
		wifi.WithScanInterval(cfg.ScanInterval),
		wifi.WithWorkers(cfg.Workers),
	)
	return client, func() {
		client.Close()
		if c, ok := provider.(io.Closer); ok {
			if err := c.Close(); err != nil {
				logger.Debug("failed to close backend", "error", err)
			}
		}
	}
}

// loadConfig reads the settings file, falling back to the default location
// when no path is given, and applies the backend flag on top.
func loadConfig(path, backend string) (config.Config, error) {
	required := path != ""
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path, required)
	if err != nil {
		return cfg, err
	}
	if backend != "" {
		cfg.Backend = backend
		if err := cfg.Validate(); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}
