// Package kaggle downloads, searches and lists datasets on the Kaggle public
// API. Credentials come from the conventional kaggle.json file.
package kaggle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/KaramelBytes/datakit-cli/internal/errs"
	"gitlab.com/tozd/go/errors"
)

// CredentialsFile is the token file name issued by kaggle.com.
const CredentialsFile = "kaggle.json"

// Credentials is the decoded kaggle.json.
type Credentials struct {
	Username string `json:"username"`
	Key      string `json:"key"`
}

// CredentialsPath resolves the kaggle.json location: configDir when set,
// then $KAGGLE_CONFIG_DIR, then ~/.kaggle.
func CredentialsPath(configDir string) string {
	dir := configDir
	if dir == "" {
		dir = os.Getenv("KAGGLE_CONFIG_DIR")
	}
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		dir = filepath.Join(home, ".kaggle")
	}
	return filepath.Join(dir, CredentialsFile)
}

func setupSteps(path string) string {
	return strings.Join([]string{
		"To configure it:",
		"  1. Go to https://www.kaggle.com/settings",
		"  2. In the 'API' section click 'Create New API Token'",
		"  3. Download kaggle.json",
		"  4. Place it at " + path,
		"  5. On Linux/macOS run: chmod 600 " + path,
	}, "\n")
}

// CheckCredentials reads and validates the credential file at path. The
// returned warnings are advisory, like an insecure file mode.
func CheckCredentials(path string) (Credentials, []string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credentials{}, nil, &errs.SetupError{What: "kaggle.json not found", Path: path, Remedy: setupSteps(path)}
		}
		return Credentials{}, nil, &errs.SetupError{What: "cannot access kaggle.json", Path: path, Err: err}
	}
	var warnings []string
	if runtime.GOOS != "windows" {
		if perm := info.Mode().Perm(); perm != 0o600 {
			warnings = append(warnings, fmt.Sprintf("%s has permissions %#o, run: chmod 600 %s", path, uint32(perm), path))
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, warnings, &errs.SetupError{What: "cannot read kaggle.json", Path: path, Err: err}
	}
	var c Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return Credentials{}, warnings, &errs.SetupError{
			What:   "kaggle.json is not valid JSON",
			Path:   path,
			Err:    errors.WithStack(err),
			Remedy: setupSteps(path),
		}
	}
	if c.Username == "" || c.Key == "" {
		return Credentials{}, warnings, &errs.SetupError{
			What:   "kaggle.json must contain \"username\" and \"key\"",
			Path:   path,
			Remedy: setupSteps(path),
		}
	}
	return c, warnings, nil
}
