package cmd

import (
	"fmt"
	"strconv"

	cfgpkg "github.com/KaramelBytes/datakit-cli/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set datakit configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Println("No config loaded")
			return nil
		}
		fmt.Printf("kaggle_api_base: %s\n", cfg.KaggleAPIBase)
		if cfg.KaggleConfigDir != "" {
			fmt.Printf("kaggle_config_dir: %s\n", cfg.KaggleConfigDir)
		}
		fmt.Printf("http_timeout_sec: %d\n", cfg.HTTPTimeoutSec)
		if cfg.ProjectRoot != "" {
			fmt.Printf("project_root: %s\n", cfg.ProjectRoot)
		}
		fmt.Printf("registry_path: %s\n", cfg.RegistryPath)
		if cfg.ReportDir != "" {
			fmt.Printf("report_dir: %s\n", cfg.ReportDir)
		}
		fmt.Printf("ambiguity: %s\n", cfg.Ambiguity)
		fmt.Printf("cache_invalidate_on_change: %t\n", cfg.CacheInvalidates)
		fmt.Printf("log_level: %s\n", cfg.LogLevel)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if _, err := settings(); err != nil {
			return err
		}
		switch key {
		case "kaggle_api_base":
			cfg.KaggleAPIBase = val
		case "kaggle_config_dir":
			cfg.KaggleConfigDir = val
		case "http_timeout_sec":
			i, err := strconv.Atoi(val)
			if err != nil || i < 0 {
				return fmt.Errorf("invalid int for http_timeout_sec: %v", val)
			}
			cfg.HTTPTimeoutSec = i
		case "project_root":
			cfg.ProjectRoot = val
		case "registry_path":
			cfg.RegistryPath = val
		case "report_dir":
			cfg.ReportDir = val
		case "ambiguity":
			switch val {
			case cfgpkg.AmbiguityPick, cfgpkg.AmbiguityFail:
				cfg.Ambiguity = val
			default:
				return fmt.Errorf("invalid ambiguity: %s (use pick or fail)", val)
			}
		case "cache_invalidate_on_change":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return fmt.Errorf("invalid bool for cache_invalidate_on_change: %w", err)
			}
			cfg.CacheInvalidates = b
		case "log_level":
			cfg.LogLevel = val
		default:
			return fmt.Errorf("unknown key: %s", key)
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Println("Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
