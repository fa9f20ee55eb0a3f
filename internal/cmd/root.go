package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"datastore-lite/internal/config"
	"datastore-lite/internal/kvstorage/jsonfile"

	"github.com/spf13/cobra"
)

// Settings is the resolved configuration, before any store is opened.
type Settings struct {
	Path     string // as configured; empty means the default location
	Capacity int64
	JSON     bool
	Logger   *slog.Logger
}

// AppProvider lazily initializes the App on first use.
type AppProvider struct {
	settingsOnce sync.Once
	settings     Settings
	settingsErr  error

	once sync.Once
	app  *App
	err  error

	// Config captured from flags before Execute()
	ConfigFile string
	StorePath  string
	Capacity   string
	LogLevel   string
	JSONOutput bool
	Out        io.Writer
	Err        io.Writer
}

// NewTestProvider creates a provider pre-initialized with the given App.
// Used for testing commands with a test App.
func NewTestProvider(app *App) *AppProvider {
	p := &AppProvider{
		app:        app,
		Out:        app.Out,
		Err:        app.Err,
		JSONOutput: app.JSON,
	}
	p.settings = Settings{Path: app.Path, JSON: app.JSON, Logger: app.Logger}
	if app.Store != nil {
		p.settings.Capacity = app.Store.Capacity()
	}
	p.settingsOnce.Do(func() {})
	p.once.Do(func() {})
	return p
}

// Settings resolves configuration from defaults, config file, environment
// and flags. It does not open the store.
func (p *AppProvider) Settings() (Settings, error) {
	p.settingsOnce.Do(func() {
		p.settings, p.settingsErr = p.resolve()
	})
	return p.settings, p.settingsErr
}

func (p *AppProvider) resolve() (Settings, error) {
	cfg, err := config.Resolve(p.ConfigFile)
	if err != nil {
		return Settings{}, err
	}
	if p.StorePath != "" {
		cfg.Path = p.StorePath
	}
	if p.Capacity != "" {
		cfg.Capacity = p.Capacity
	}
	if p.LogLevel != "" {
		cfg.LogLevel = p.LogLevel
	}
	if p.JSONOutput {
		cfg.JSON = true
	}

	capacity, err := cfg.CapacityBytes()
	if err != nil {
		return Settings{}, err
	}
	level, err := cfg.Level()
	if err != nil {
		return Settings{}, err
	}

	return Settings{
		Path:     cfg.Path,
		Capacity: capacity,
		JSON:     cfg.JSON,
		Logger:   newLogger(p.errOut(), level),
	}, nil
}

// Get returns the App, opening the data store on first call.
func (p *AppProvider) Get() (*App, error) {
	p.once.Do(func() {
		if p.app == nil {
			p.app, p.err = p.init()
		}
	})
	return p.app, p.err
}

func (p *AppProvider) init() (*App, error) {
	s, err := p.Settings()
	if err != nil {
		return nil, err
	}

	store, err := jsonfile.Open(s.Path,
		jsonfile.WithCapacity(s.Capacity),
		jsonfile.WithLogger(s.Logger),
	)
	if err != nil {
		return nil, err
	}

	out := p.Out
	if out == nil {
		out = os.Stdout
	}

	return &App{
		Store:  store,
		Path:   store.Path(),
		Logger: s.Logger,
		Out:    out,
		Err:    p.errOut(),
		JSON:   s.JSON,
	}, nil
}

// Close closes the store if it was opened.
func (p *AppProvider) Close() error {
	if p.app == nil || p.app.Store == nil {
		return nil
	}
	return p.app.Store.Close()
}

func (p *AppProvider) errOut() io.Writer {
	if p.Err == nil {
		return os.Stderr
	}
	return p.Err
}

// resolveStorePath returns the absolute path of the configured data store
// file without opening it.
func resolveStorePath(path string) (string, error) {
	if path == "" {
		path = jsonfile.DefaultPath
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving path %s: %w", path, err)
	}
	return abs, nil
}

// Execute runs the CLI. The store, if opened, is closed before returning so
// pending changes are saved.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider := &AppProvider{
		Out: os.Stdout,
		Err: os.Stderr,
	}

	rootCmd := newRootCmd(provider)
	err := rootCmd.ExecuteContext(ctx)
	return errors.Join(err, provider.Close())
}

// newRootCmd creates the root command with all subcommands.
func newRootCmd(provider *AppProvider) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "kvs",
		Short: "A single-file JSON key-value store",
		Long: `kvs stores string values under case-insensitive keys in one JSON file.
The file is locked while a command runs, so only one kvs process can use a
given data store at a time.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags - these populate the provider config
	rootCmd.PersistentFlags().StringVar(&provider.ConfigFile, "config", "", "Config file (.yaml or .toml)")
	rootCmd.PersistentFlags().StringVar(&provider.StorePath, "path", "", "Data store file (default: ./data_store/data_store.json)")
	rootCmd.PersistentFlags().StringVar(&provider.Capacity, "capacity", "", "Maximum store size, e.g. 512KiB or 1GiB (default: 1GiB)")
	rootCmd.PersistentFlags().StringVar(&provider.LogLevel, "log-level", "", "Log level: debug, info, warn, error (default: warn)")
	rootCmd.PersistentFlags().BoolVar(&provider.JSONOutput, "json", false, "Output in JSON format")

	rootCmd.AddCommand(newInsertCmd(provider))
	rootCmd.AddCommand(newReadCmd(provider))
	rootCmd.AddCommand(newDeleteCmd(provider))
	rootCmd.AddCommand(newKeysCmd(provider))
	rootCmd.AddCommand(newStatsCmd(provider))
	rootCmd.AddCommand(newWatchCmd(provider))
	rootCmd.AddCommand(newVersionCmd(provider))

	return rootCmd
}
