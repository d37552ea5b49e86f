package kaggle

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/KaramelBytes/datakit-cli/internal/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"gitlab.com/tozd/go/errors"
)

// Options configures a Downloader.
type Options struct {
	// DownloadDir receives datasets; created when missing.
	DownloadDir string
	// ConfigDir overrides the kaggle.json directory.
	ConfigDir string
	BaseURL   string
	Timeout   time.Duration
	Logger    zerolog.Logger
	// Progress receives the download progress bar; nil disables it.
	Progress io.Writer
}

// Downloader fetches datasets into a local directory. It authenticates once
// at construction.
type Downloader struct {
	client   *Client
	dir      string
	log      zerolog.Logger
	progress io.Writer
	// CredentialWarnings holds advisory messages from the credential check.
	CredentialWarnings []string
}

// DownloadOptions tunes a single Download call.
type DownloadOptions struct {
	// Subdir overrides the target directory name (default: the dataset slug).
	Subdir string
	Unzip  bool
	Force  bool
}

// DownloadResult describes where files landed.
type DownloadResult struct {
	Target  string
	Files   []string
	Bytes   int64
	Skipped bool
}

// NewDownloader checks credentials before any network access, builds the
// authenticated client and ensures the download directory.
func NewDownloader(opts Options) (*Downloader, error) {
	credPath := CredentialsPath(opts.ConfigDir)
	creds, warnings, err := CheckCredentials(credPath)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		opts.Logger.Warn().Msg(w)
	}
	if opts.DownloadDir == "" {
		return nil, errors.New("download directory is required")
	}
	if err := os.MkdirAll(opts.DownloadDir, 0o755); err != nil {
		return nil, errors.Errorf("create download dir: %w", err)
	}
	opts.Logger.Debug().Str("credentials", credPath).Str("dir", opts.DownloadDir).Msg("kaggle authenticated")
	return &Downloader{
		client:             NewClient(creds, opts.BaseURL, opts.Timeout),
		dir:                opts.DownloadDir,
		log:                opts.Logger,
		progress:           opts.Progress,
		CredentialWarnings: warnings,
	}, nil
}

// Dir is the download directory.
func (d *Downloader) Dir() string { return d.dir }

var identPart = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ParseIdentifier splits "owner/name".
func ParseIdentifier(ident string) (owner, name string, err error) {
	parts := strings.Split(strings.TrimSpace(ident), "/")
	if len(parts) != 2 || !identPart.MatchString(parts[0]) || !identPart.MatchString(parts[1]) {
		return "", "", errors.Errorf("invalid dataset identifier %q: want owner/name", ident)
	}
	return parts[0], parts[1], nil
}

// Download fetches the dataset ident ("owner/name") into a subdirectory of
// the download dir. A non-empty target is left alone unless Force is set.
//
// Files arrive in a staging directory first and are then moved into place.
// There is no rollback: a failure while moving can leave the target partly
// updated and the staging directory behind.
func (d *Downloader) Download(ctx context.Context, ident string, opts DownloadOptions) (*DownloadResult, error) {
	owner, name, err := ParseIdentifier(ident)
	if err != nil {
		return nil, err
	}
	sub := name
	if opts.Subdir != "" {
		// one plain folder name: no separators, no "." or ".."
		if !identPart.MatchString(opts.Subdir) {
			return nil, errors.Errorf("invalid subdir %q: want a single folder name under %s", opts.Subdir, d.dir)
		}
		sub = opts.Subdir
	}
	target := filepath.Join(d.dir, sub)
	log := d.log.With().Str("dataset", ident).Str("target", target).Logger()

	if !opts.Force && utils.DirHasEntries(target) {
		files, err := utils.ListFiles(target)
		if err != nil {
			return nil, err
		}
		log.Info().Int("files", len(files)).Msg("dataset already present, skipping download")
		return &DownloadResult{Target: target, Files: files, Skipped: true}, nil
	}

	staging := filepath.Join(d.dir, ".staging-"+uuid.NewString())
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, errors.Errorf("create staging dir: %w", err)
	}
	log.Info().Str("staging", staging).Msg("downloading")

	endpoint := "/datasets/download/" + owner + "/" + name
	archive, n, err := d.client.download(ctx, "download "+ident, endpoint, name+".zip", createIn(staging), d.bar("downloading "+name))
	if err != nil {
		return nil, err
	}
	if opts.Unzip && isZip(archive) {
		archivePath := filepath.Join(staging, archive)
		if _, err := Unzip(archivePath, staging); err != nil {
			return nil, err
		}
		if err := os.Remove(archivePath); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	if err := os.MkdirAll(target, 0o755); err != nil {
		return nil, errors.Errorf("create target dir: %w", err)
	}
	files, err := mergeInto(staging, target)
	if err != nil {
		return nil, err
	}
	if err := os.RemoveAll(staging); err != nil {
		return nil, errors.Errorf("remove staging dir: %w", err)
	}
	log.Info().Int("files", len(files)).Int64("bytes", n).Msg("download complete")
	return &DownloadResult{Target: target, Files: files, Bytes: n}, nil
}

// DownloadCompetition fetches every data file of a competition into dir
// (default: download dir / competition), unzips the archive and deletes it.
func (d *Downloader) DownloadCompetition(ctx context.Context, competition, dir string) (*DownloadResult, error) {
	if !identPart.MatchString(competition) {
		return nil, errors.Errorf("invalid competition name %q", competition)
	}
	if dir == "" {
		dir = filepath.Join(d.dir, competition)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Errorf("create competition dir: %w", err)
	}
	endpoint := "/competitions/data/download-all/" + competition
	archive, n, err := d.client.download(ctx, "download competition "+competition, endpoint, competition+".zip", createIn(dir), d.bar("downloading "+competition))
	if err != nil {
		return nil, err
	}
	archivePath := filepath.Join(dir, archive)
	if isZip(archive) {
		if _, err := Unzip(archivePath, dir); err != nil {
			return nil, err
		}
		if err := os.Remove(archivePath); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	files, err := utils.ListFiles(dir)
	if err != nil {
		return nil, err
	}
	d.log.Info().Str("competition", competition).Str("target", dir).Int("files", len(files)).Msg("competition data downloaded")
	return &DownloadResult{Target: dir, Files: files, Bytes: n}, nil
}

// Search lists catalog datasets matching query.
func (d *Downloader) Search(ctx context.Context, query string, max int) ([]DatasetInfo, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("search query cannot be empty")
	}
	res, err := d.client.Search(ctx, query, max)
	if err != nil {
		return nil, err
	}
	d.log.Debug().Str("query", query).Int("results", len(res)).Msg("search complete")
	return res, nil
}

// ListFiles lists the files of ident without downloading.
func (d *Downloader) ListFiles(ctx context.Context, ident string) ([]FileInfo, error) {
	owner, name, err := ParseIdentifier(ident)
	if err != nil {
		return nil, err
	}
	return d.client.ListFiles(ctx, owner, name)
}

func (d *Downloader) bar(description string) func(int64) *progressbar.ProgressBar {
	if d.progress == nil {
		return nil
	}
	return byteBar(d.progress, description)
}

func createIn(dir string) func(name string) (io.WriteCloser, error) {
	return func(name string) (io.WriteCloser, error) {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return f, nil
	}
}

func isZip(name string) bool { return strings.EqualFold(filepath.Ext(name), ".zip") }

// mergeInto moves every file under src into dst, keeping relative paths and
// overwriting files with the same name.
func mergeInto(src, dst string) ([]string, error) {
	files, err := utils.ListFiles(src)
	if err != nil {
		return nil, err
	}
	for _, rel := range files {
		to := filepath.Join(dst, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
			return nil, errors.WithStack(err)
		}
		if err := os.Rename(filepath.Join(src, filepath.FromSlash(rel)), to); err != nil {
			return nil, errors.Errorf("move %s into %s: %w", rel, dst, err)
		}
	}
	return files, nil
}

// SetupStep is one line of a VerifySetup report.
type SetupStep struct {
	Name    string
	OK      bool
	Detail  string
	Warning string
}

// SetupReport is the outcome of VerifySetup.
type SetupReport struct {
	CredentialsPath string
	Steps           []SetupStep
	Username        string
}

// OK reports whether every step passed.
func (r *SetupReport) OK() bool {
	for _, s := range r.Steps {
		if !s.OK {
			return false
		}
	}
	return len(r.Steps) > 0
}

// VerifySetup checks the credential file, its permissions and, when check
// is true, that the API accepts the credentials.
func VerifySetup(ctx context.Context, opts Options, check bool) *SetupReport {
	path := CredentialsPath(opts.ConfigDir)
	rep := &SetupReport{CredentialsPath: path}

	creds, warnings, err := CheckCredentials(path)
	if err != nil {
		rep.Steps = append(rep.Steps, SetupStep{Name: "credentials file", Detail: err.Error()})
		return rep
	}
	step := SetupStep{Name: "credentials file", OK: true, Detail: path}
	if len(warnings) > 0 {
		step.Warning = strings.Join(warnings, "; ")
	}
	rep.Steps = append(rep.Steps, step)
	rep.Steps = append(rep.Steps, SetupStep{Name: "credentials parse", OK: true, Detail: "username " + creds.Username})
	rep.Username = creds.Username

	if check {
		c := NewClient(creds, opts.BaseURL, opts.Timeout)
		if _, err := c.Search(ctx, "", 1); err != nil {
			rep.Steps = append(rep.Steps, SetupStep{Name: "authentication", Detail: err.Error()})
			return rep
		}
		rep.Steps = append(rep.Steps, SetupStep{Name: "authentication", OK: true, Detail: "API accepted the credentials"})
	}
	return rep
}
