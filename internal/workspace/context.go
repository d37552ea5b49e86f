package workspace

import (
	"path/filepath"

	"github.com/KaramelBytes/datakit-cli/internal/config"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// InitOptions control Initialize.
type InitOptions struct {
	// Start is where root detection begins. Empty means the working directory.
	Start string
	// Root skips detection when set.
	Root string
	// RegistryPath is the project JSON registry; relative paths are joined onto the root.
	RegistryPath string
	// CreateDirs creates missing layout entries.
	CreateDirs bool
	Logger     zerolog.Logger
}

// Context is the process-wide view of a project, built once by Initialize.
type Context struct {
	Resolution  Resolution
	Layout      Layout
	Registry    *config.Registry
	Ensured     *EnsureResult
	RegistryErr error
}

// Initialize resolves the project root, builds the layout, optionally creates
// missing folders and loads the registry. Registry problems are logged and
// leave the built-in entries in place.
func Initialize(opts InitOptions) (*Context, error) {
	log := opts.Logger
	var res Resolution
	if opts.Root != "" {
		abs, err := filepath.Abs(opts.Root)
		if err != nil {
			return nil, errors.Errorf("resolve root: %w", err)
		}
		res = Resolution{Root: abs, Level: 0}
	} else {
		res = FindRoot(opts.Start, log)
	}

	ctx := &Context{Resolution: res, Layout: NewLayout(res.Root)}
	if opts.CreateDirs {
		ens, err := ctx.Layout.Ensure()
		if err != nil {
			return nil, err
		}
		ctx.Ensured = &ens
	}

	regPath := opts.RegistryPath
	if regPath == "" {
		regPath = filepath.Join(ctx.Layout.ConfigDir(), "project_config.json")
	} else if !filepath.IsAbs(regPath) {
		regPath = filepath.Join(res.Root, regPath)
	}
	reg, err := config.LoadRegistry(regPath)
	if err != nil {
		log.Warn().Err(err).Str("path", regPath).Msg("using built-in registry")
		ctx.RegistryErr = err
	}
	ctx.Registry = reg
	return ctx, nil
}

// RawPath joins the registered input filename for key onto data/raw.
func (c *Context) RawPath(key string) (string, error) {
	name, err := c.Registry.InputFile(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(c.Layout.Raw(), name), nil
}

// ProcessedPath joins the registered output filename for key onto data/processed.
func (c *Context) ProcessedPath(key string) (string, error) {
	name, err := c.Registry.OutputFile(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(c.Layout.Processed(), name), nil
}
