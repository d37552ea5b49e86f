package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/KaramelBytes/datakit-cli/internal/kaggle"
	"github.com/KaramelBytes/datakit-cli/internal/logging"
	"github.com/KaramelBytes/datakit-cli/internal/workspace"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	kgCheck    bool
	kgSubdir   string
	kgNoUnzip  bool
	kgForce    bool
	kgMax      int
	kgDir      string
	kgQuietBar bool
)

var kaggleCmd = &cobra.Command{
	Use:   "kaggle",
	Short: "Download datasets and competition data from Kaggle into data/raw",
}

func kaggleOptions(ctx context.Context, ws *workspace.Context) (kaggle.Options, error) {
	c, err := settings()
	if err != nil {
		return kaggle.Options{}, err
	}
	opts := kaggle.Options{
		DownloadDir: ws.Layout.Raw(),
		ConfigDir:   c.KaggleConfigDir,
		BaseURL:     c.KaggleAPIBase,
		Timeout:     httpTimeout(c),
		Logger:      logging.FromContext(ctx),
	}
	if !kgQuietBar {
		opts.Progress = os.Stderr
	}
	return opts, nil
}

func newDownloader(ctx context.Context) (*kaggle.Downloader, *workspace.Context, error) {
	ws, err := openWorkspace(false)
	if err != nil {
		return nil, nil, err
	}
	opts, err := kaggleOptions(ctx, ws)
	if err != nil {
		return nil, nil, err
	}
	d, err := kaggle.NewDownloader(opts)
	if err != nil {
		return nil, nil, err
	}
	for _, w := range d.CredentialWarnings {
		fmt.Fprintf(os.Stderr, "⚠ Warning: %s\n", w)
	}
	return d, ws, nil
}

var kaggleVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that Kaggle credentials are installed and usable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace(false)
		if err != nil {
			return err
		}
		opts, err := kaggleOptions(cmd.Context(), ws)
		if err != nil {
			return err
		}
		rep := kaggle.VerifySetup(cmd.Context(), opts, kgCheck)
		ok := color.New(color.FgGreen).SprintFunc()
		bad := color.New(color.FgRed).SprintFunc()
		warn := color.New(color.FgYellow).SprintFunc()
		for _, s := range rep.Steps {
			mark := ok("✓")
			if !s.OK {
				mark = bad("✗")
			}
			fmt.Printf("%s %s: %s\n", mark, s.Name, s.Detail)
			if s.Warning != "" {
				fmt.Printf("  %s %s\n", warn("⚠"), s.Warning)
			}
		}
		if !rep.OK() {
			return fmt.Errorf("kaggle setup incomplete (credentials: %s)", rep.CredentialsPath)
		}
		fmt.Println("✓ Kaggle setup verified")
		return nil
	},
}

var kaggleDownloadCmd = &cobra.Command{
	Use:   "download <owner/name | registry-key>",
	Short: "Download a dataset into data/raw/<name>",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, ws, err := newDownloader(cmd.Context())
		if err != nil {
			return err
		}
		ident := args[0]
		if !strings.Contains(ident, "/") {
			ident, err = ws.Registry.KaggleDataset(args[0])
			if err != nil {
				return err
			}
		}
		res, err := d.Download(cmd.Context(), ident, kaggle.DownloadOptions{
			Subdir: kgSubdir,
			Unzip:  !kgNoUnzip,
			Force:  kgForce,
		})
		if err != nil {
			return err
		}
		if res.Skipped {
			fmt.Printf("✓ %s already present in %s (%d files, use --force to re-download)\n", ident, res.Target, len(res.Files))
			return nil
		}
		fmt.Printf("✓ Downloaded %s into %s\n", ident, res.Target)
		for _, f := range res.Files {
			fmt.Printf("  - %s\n", f)
		}
		return nil
	},
}

var kaggleSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the Kaggle dataset catalog",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, _, err := newDownloader(cmd.Context())
		if err != nil {
			return err
		}
		hits, err := d.Search(cmd.Context(), strings.Join(args, " "), kgMax)
		if err != nil {
			return err
		}
		if len(hits) == 0 {
			fmt.Println("(no datasets found)")
			return nil
		}
		for _, h := range hits {
			fmt.Printf("- %s: %s (%.2f MB, %d downloads)\n", h.Ref, h.Title, float64(h.Size)/(1<<20), h.DownloadCount)
		}
		return nil
	},
}

var kaggleFilesCmd = &cobra.Command{
	Use:   "files <owner/name>",
	Short: "List the files of a dataset without downloading",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, _, err := newDownloader(cmd.Context())
		if err != nil {
			return err
		}
		files, err := d.ListFiles(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Printf("- %s (%d bytes)\n", f.Name, f.TotalBytes)
		}
		return nil
	},
}

var kaggleCompetitionCmd = &cobra.Command{
	Use:   "competition <name>",
	Short: "Download and unpack every data file of a competition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, _, err := newDownloader(cmd.Context())
		if err != nil {
			return err
		}
		res, err := d.DownloadCompetition(cmd.Context(), args[0], kgDir)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Competition %s downloaded into %s (%d files)\n", args[0], res.Target, len(res.Files))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(kaggleCmd)
	kaggleCmd.AddCommand(kaggleVerifyCmd, kaggleDownloadCmd, kaggleSearchCmd, kaggleFilesCmd, kaggleCompetitionCmd)
	kaggleCmd.PersistentFlags().BoolVar(&kgQuietBar, "no-progress", false, "disable the download progress bar")
	kaggleVerifyCmd.Flags().BoolVar(&kgCheck, "check", false, "also make one authenticated API call")
	kaggleDownloadCmd.Flags().StringVar(&kgSubdir, "subdir", "", "target folder under data/raw (default: dataset name)")
	kaggleDownloadCmd.Flags().BoolVar(&kgNoUnzip, "no-unzip", false, "keep the downloaded archive as-is")
	kaggleDownloadCmd.Flags().BoolVarP(&kgForce, "force", "f", false, "download even if the target folder has files")
	kaggleSearchCmd.Flags().IntVar(&kgMax, "max", 20, "maximum results to show")
	kaggleCompetitionCmd.Flags().StringVar(&kgDir, "dir", "", "target directory (default data/raw/<competition>)")
}
