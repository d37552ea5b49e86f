package kaggle

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/KaramelBytes/datakit-cli/internal/errs"
	"github.com/schollz/progressbar/v3"
	"gitlab.com/tozd/go/errors"
)

// DefaultBaseURL is the public Kaggle REST API root.
const DefaultBaseURL = "https://www.kaggle.com/api/v1"

// Client talks to the Kaggle API with basic authentication. It never retries.
type Client struct {
	httpClient *http.Client
	creds      Credentials
	baseURL    string
}

// NewClient builds a client. A zero timeout means no client-side timeout.
func NewClient(creds Credentials, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		creds:      creds,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// DatasetInfo is one search hit.
type DatasetInfo struct {
	Ref           string `json:"ref"`
	Title         string `json:"title"`
	Size          int64  `json:"totalBytes"`
	DownloadCount int    `json:"downloadCount"`
	VoteCount     int    `json:"voteCount"`
}

// FileInfo is one file of a dataset.
type FileInfo struct {
	Name       string `json:"name"`
	TotalBytes int64  `json:"totalBytes"`
}

func (c *Client) get(ctx context.Context, op, endpoint string) (*http.Response, error) {
	u := c.baseURL + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.creds.Username, c.creds.Key)
	req.Header.Set("User-Agent", "datakit-cli")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &errs.NetworkError{Op: op, URL: u, Err: err, Hint: "check your internet connection"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, classifyAPIError(op, u, decodeAPIError(resp), resp)
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, op, endpoint string, out any) error {
	resp, err := c.get(ctx, op, endpoint)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &errs.NetworkError{Op: op, URL: c.baseURL + endpoint, Err: errors.Errorf("decode response: %w", err)}
	}
	return nil
}

// Search queries the dataset catalog, returning at most max results.
func (c *Client) Search(ctx context.Context, query string, max int) ([]DatasetInfo, error) {
	q := url.Values{}
	q.Set("search", query)
	q.Set("page", "1")
	var out []DatasetInfo
	if err := c.getJSON(ctx, "search datasets", "/datasets/list?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out, nil
}

// ListFiles lists the files of owner/slug without downloading them.
func (c *Client) ListFiles(ctx context.Context, owner, slug string) ([]FileInfo, error) {
	var out struct {
		DatasetFiles []FileInfo `json:"datasetFiles"`
	}
	endpoint := "/datasets/list/" + url.PathEscape(owner) + "/" + url.PathEscape(slug)
	if err := c.getJSON(ctx, "list dataset files", endpoint, &out); err != nil {
		return nil, err
	}
	return out.DatasetFiles, nil
}

// download streams endpoint into a file created by open, reporting progress to
// bar when non-nil. It returns the server-suggested file name, or fallback.
func (c *Client) download(ctx context.Context, op, endpoint, fallback string, open func(name string) (io.WriteCloser, error), bar func(total int64) *progressbar.ProgressBar) (string, int64, error) {
	resp, err := c.get(ctx, op, endpoint)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	name := attachmentName(resp.Header.Get("Content-Disposition"))
	if name == "" {
		name = fallback
	}
	f, err := open(name)
	if err != nil {
		return "", 0, err
	}

	var w io.Writer = f
	if bar != nil {
		pb := bar(resp.ContentLength)
		defer pb.Close()
		w = io.MultiWriter(f, pb)
	}
	n, err := io.Copy(w, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return name, n, &errs.NetworkError{Op: op, URL: c.baseURL + endpoint, Err: err}
	}
	return name, n, nil
}

// attachmentName extracts a safe base file name from a Content-Disposition header.
func attachmentName(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	name := path.Base(strings.ReplaceAll(params["filename"], `\`, "/"))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}

// byteBar builds the download progress bar.
func byteBar(w io.Writer, description string) func(total int64) *progressbar.ProgressBar {
	return func(total int64) *progressbar.ProgressBar {
		return progressbar.NewOptions64(total,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(description),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "█",
				SaucerHead:    "█",
				SaucerPadding: "░",
				BarStart:      "",
				BarEnd:        "",
			}),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionOnCompletion(func() { _, _ = io.WriteString(w, "\n") }),
		)
	}
}
