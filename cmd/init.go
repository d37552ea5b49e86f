package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var initQuiet bool

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create the standard project folders under the project root",
	Long: `init resolves the project root (or uses [dir] / --root verbatim), creates any
missing folder of the standard layout and loads the project registry.
Existing folders are never modified.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			flagRoot = args[0]
		}
		ws, err := openWorkspace(true)
		if err != nil {
			return err
		}
		res := ws.Resolution
		if !initQuiet {
			switch {
			case flagRoot != "":
				fmt.Printf("Project root: %s\n", res.Root)
			case res.Fallback:
				color.New(color.FgYellow).Printf("⚠ No project marker found, using %s\n", res.Root)
			default:
				fmt.Printf("Project root: %s (marker %s, %d levels up)\n", res.Root, res.Marker, res.Level)
			}
		}

		ens := ws.Ensured
		ok := color.New(color.FgGreen)
		if !initQuiet {
			for _, d := range ens.Existing {
				fmt.Printf("  • %s\n", d)
			}
			for _, d := range ens.Created {
				ok.Printf("  + %s\n", d)
			}
		}
		if ens.Fresh() {
			ok.Printf("✓ Project structure created (%d folders)\n", len(ens.Created))
		} else {
			ok.Printf("✓ Project structure checked: %d existing, %d created\n", len(ens.Existing), len(ens.Created))
		}
		if ws.RegistryErr != nil {
			color.New(color.FgYellow).Printf("⚠ Warning: using built-in registry: %v\n", ws.RegistryErr)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVarP(&initQuiet, "quiet", "q", false, "only print the summary line")
}
