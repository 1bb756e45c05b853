package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/disk"
	"golang.org/x/sys/unix"

	"arcmigrate/internal/config"
	"arcmigrate/internal/deps"
	"arcmigrate/internal/services"
)

const (
	endpointTimeout     = 5 * time.Second
	minStagingFreeBytes = 1 << 30
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}
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

// CheckFreeSpace reports whether the filesystem holding path has at least
// minFree bytes available. A short staging disk is a warning, not a blocker.
func CheckFreeSpace(ctx context.Context, name, path string, minFree uint64) Result {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return Result{Name: name, Optional: true, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	detail := fmt.Sprintf("%s free on %s", humanize.IBytes(usage.Free), path)
	if usage.Free < minFree {
		return Result{Name: name, Optional: true, Detail: detail + " (below " + humanize.IBytes(minFree) + ")"}
	}
	return Result{Name: name, Passed: true, Optional: true, Detail: detail}
}

// CheckBinaries evaluates the encoder binaries through the deps package.
func CheckBinaries(cfg *config.Config) []Result {
	statuses := deps.CheckBinaries(deps.EncoderRequirements(cfg.Encoder.FFmpegBinary, cfg.Encoder.FFprobeBinary))
	results := make([]Result, 0, len(statuses))
	for _, status := range statuses {
		results = append(results, Result{
			Name:     status.Name,
			Passed:   status.Available(),
			Optional: status.Optional,
			Detail:   status.Detail(),
		})
	}
	return results
}

// CheckEndpoint verifies that a collaborator answers HTTP at all. Any status
// below 500 counts as reachable; authentication is exercised by the run itself.
func CheckEndpoint(ctx context.Context, name, baseURL string, insecure bool) Result {
	if baseURL == "" {
		return Result{Name: name, Detail: "missing url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, endpointTimeout)
	defer cancel()

	client := services.NewRESTClient(services.ClientOptions{
		BaseURL:            baseURL,
		Timeout:            endpointTimeout,
		InsecureSkipVerify: insecure,
	})
	resp, err := client.R().SetContext(checkCtx).Get("/")
	if err != nil {
		return Result{Name: name, Detail: summarizeEndpointError(err)}
	}
	if resp.StatusCode() >= 500 {
		return Result{Name: name, Detail: fmt.Sprintf("unhealthy (%d)", resp.StatusCode())}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

func summarizeEndpointError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (endpoint unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (endpoint unreachable)"
	}
	return fmt.Sprintf("unreachable (%v)", err)
}
