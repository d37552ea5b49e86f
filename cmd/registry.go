package cmd

import (
	"fmt"
	"path/filepath"

	cfgpkg "github.com/KaramelBytes/datakit-cli/internal/config"
	"github.com/KaramelBytes/datakit-cli/internal/utils"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect the project registry (input files, output files, datasets)",
}

var registryShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List registry entries and whether their files exist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace(false)
		if err != nil {
			return err
		}
		reg := ws.Registry
		if src := reg.Source(); src != "" && ws.RegistryErr == nil {
			fmt.Printf("Registry: %s\n", src)
		} else {
			color.New(color.FgYellow).Println("Registry: built-in entries")
		}
		present := color.New(color.FgGreen).SprintFunc()
		missing := color.New(color.FgRed).SprintFunc()

		sections := []struct {
			name string
			dir  string
		}{
			{cfgpkg.SectionInputs, ws.Layout.Raw()},
			{cfgpkg.SectionOutputs, ws.Layout.Processed()},
			{cfgpkg.SectionDatasets, ""},
		}
		for _, s := range sections {
			entries, err := reg.Entries(s.name)
			if err != nil {
				return err
			}
			keys, _ := reg.Keys(s.name)
			fmt.Printf("\n%s:\n", s.name)
			if len(keys) == 0 {
				fmt.Println("  (none)")
				continue
			}
			for _, k := range keys {
				v := entries[k]
				if s.dir == "" {
					fmt.Printf("  %-20s %s\n", k, v)
					continue
				}
				if size, ok := utils.FileSize(filepath.Join(s.dir, v)); ok {
					fmt.Printf("  %s %-20s %s (%.2f MB)\n", present("✓"), k, v, float64(size)/(1<<20))
				} else {
					fmt.Printf("  %s %-20s %s\n", missing("✗"), k, v)
				}
			}
		}
		for _, name := range cfgpkg.OptionalSections {
			if sec := reg.Section(name); len(sec) > 0 {
				fmt.Printf("\n%s: %d keys\n", name, len(sec))
			}
		}
		return nil
	},
}

var registryPathCmd = &cobra.Command{
	Use:   "path <input|output|dataset> <key>",
	Short: "Resolve a registry key to a path or dataset identifier",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace(false)
		if err != nil {
			return err
		}
		var out string
		switch args[0] {
		case "input":
			out, err = ws.RawPath(args[1])
		case "output":
			out, err = ws.ProcessedPath(args[1])
		case "dataset":
			out, err = ws.Registry.KaggleDataset(args[1])
		default:
			return fmt.Errorf("unknown registry kind: %s (use input, output or dataset)", args[0])
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(registryCmd)
	registryCmd.AddCommand(registryShowCmd)
	registryCmd.AddCommand(registryPathCmd)
}
