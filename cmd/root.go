package cmd

import (
	"fmt"
	"os"
	"time"

	cfgpkg "github.com/KaramelBytes/datakit-cli/internal/config"
	"github.com/KaramelBytes/datakit-cli/internal/loader"
	"github.com/KaramelBytes/datakit-cli/internal/logging"
	"github.com/KaramelBytes/datakit-cli/internal/workspace"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	debug   bool
	// Project flags (override config if set)
	flagRoot     string
	flagRegistry string

	// Loaded configuration
	cfg    *cfgpkg.Global
	logger = logging.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "datakit",
	Short: "datakit: scaffold, fetch, load and profile data-science datasets",
	Long: `datakit manages the standard folder layout of a data-science project, downloads
datasets from Kaggle, loads tabular files of any common format and writes
descriptive profiling reports.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cmd.SetContext(logging.WithContext(cmd.Context(), logger))
	},
}

// Execute is the entry point called by main.main()
func Execute() {
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.datakit/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", "", "project root (skips marker detection)")
	rootCmd.PersistentFlags().StringVar(&flagRegistry, "registry", "", "project registry JSON (default <root>/config/project_config.json)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	cfg = c
	level := cfg.LogLevel
	if debug {
		level = "debug"
	}
	logger = logging.New(os.Stderr, level)
}

// settings returns the loaded configuration, loading it on demand for
// callers that run without Execute (tests).
func settings() (*cfgpkg.Global, error) {
	if cfg != nil {
		return cfg, nil
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg = c
	return cfg, nil
}

// openWorkspace resolves the project root and registry, honouring --root and
// --registry over the config file.
func openWorkspace(createDirs bool) (*workspace.Context, error) {
	c, err := settings()
	if err != nil {
		return nil, err
	}
	opts := workspace.InitOptions{
		Root:         c.ProjectRoot,
		RegistryPath: c.RegistryPath,
		CreateDirs:   createDirs,
		Logger:       logger,
	}
	if flagRoot != "" {
		opts.Root = flagRoot
	}
	if flagRegistry != "" {
		opts.RegistryPath = flagRegistry
	}
	return workspace.Initialize(opts)
}

func newLoader(ws *workspace.Context, strict bool) (*loader.Loader, error) {
	c, err := settings()
	if err != nil {
		return nil, err
	}
	var policy loader.Policy = loader.KeepForever{}
	if c.CacheInvalidates {
		policy = loader.InvalidateOnModTime{}
	}
	return loader.New(loader.Options{
		Layout:    ws.Layout,
		Cache:     loader.NewCache(policy),
		Logger:    logger,
		Ambiguity: c.Ambiguity,
		Strict:    strict,
	}), nil
}

func httpTimeout(c *cfgpkg.Global) time.Duration {
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}
