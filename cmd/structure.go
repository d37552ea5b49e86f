package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var structureFiles bool

var structureCmd = &cobra.Command{
	Use:   "structure",
	Short: "Show the project folder tree",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace(false)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), ws.Layout.Tree(structureFiles))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(structureCmd)
	structureCmd.Flags().BoolVar(&structureFiles, "files", false, "list up to five files in each data folder")
}
