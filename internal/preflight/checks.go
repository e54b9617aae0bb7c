package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"keepsake/internal/config"
	"keepsake/internal/deps"
	"keepsake/internal/logging"
	"keepsake/internal/templates"
)

// CheckLiveness issues a single GET against url. Any 2xx or 3xx answer
// passes; redirects are not followed. A transport error or any other status
// means the network is currently unreachable.
func CheckLiveness(ctx context.Context, url string, timeout time.Duration) Result {
	const name = "Network"

	url = strings.TrimSpace(url)
	if url == "" {
		return Result{Name: name, Passed: true, Detail: "not configured"}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := &http.Client{
		Timeout: timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, url, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid url (%v)", err)}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable (%d)", url, resp.StatusCode)}
	}
	return Result{Name: name, Detail: fmt.Sprintf("%s currently unreachable (%d)", url, resp.StatusCode)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckTemplates loads the templates directory and reports how many
// descriptors are usable. Invalid descriptors fail the check.
func CheckTemplates(dir string) Result {
	const name = "Templates"

	reg, err := templates.LoadDir(dir, logging.NewNop())
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", dir, err)}
	}
	loaded := len(reg.All())
	invalid := reg.Invalid()
	if len(invalid) > 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (%d loaded, %d invalid)", dir, loaded, len(invalid))}
	}
	if loaded == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (no templates)", dir)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d loaded)", dir, loaded)}
}

// CheckSystemDeps evaluates the external binaries keepsake runs.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "yt-dlp",
			Command:     cfg.Downloader.Binary,
			Description: "Required for metadata and downloads",
		},
	}
	statuses := deps.CheckBinaries(requirements)
	return append(statuses, deps.CheckFFmpegForDownloader(cfg.Downloader.Binary))
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "currently unreachable (timed out)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "currently unreachable (timed out)"
	}
	return fmt.Sprintf("currently unreachable (%v)", err)
}
