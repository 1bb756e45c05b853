package scan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"arcmigrate/internal/config"
	"arcmigrate/internal/logging"
	"arcmigrate/internal/services"
)

// Scan states reported by the service.
const (
	StateQueued     = "queued"
	StateInProgress = "in progress"
	StateComplete   = "complete"
	StateFailed     = "failed"
)

// Request is the re-index submission body.
type Request struct {
	CreateProxy string   `json:"createproxy"`
	Files       []string `json:"files"`
	FullScan    string   `json:"fullscan"`
	MediaSpace  string   `json:"mediaspace"`
	User        string   `json:"user"`
	Metadata    Metadata `json:"metadata"`
}

// Metadata is the catalog metadata attached to the re-indexed file.
type Metadata struct {
	Custom   map[string]any  `json:"custom"`
	Comments json.RawMessage `json:"comments"`
	ClipName string          `json:"clip_name"`
	Scene    string          `json:"scene"`
}

// Service submits files for re-indexing and waits for the result.
type Service interface {
	Submit(ctx context.Context, req Request) (string, error)
	Wait(ctx context.Context, id string, interval time.Duration) error
}

// Client talks to the scan service.
type Client struct {
	http     *resty.Client
	attempts int
	logger   *slog.Logger
}

// NewClient builds a scan client from configuration.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		http: services.NewRESTClient(services.ClientOptions{
			BaseURL:            cfg.Scan.BaseURL,
			Username:           cfg.Catalog.Username,
			Password:           cfg.Catalog.Password,
			Timeout:            time.Duration(cfg.Scan.RequestTimeout) * time.Second,
			InsecureSkipVerify: cfg.Catalog.InsecureSkipVerify,
		}),
		attempts: cfg.Scan.PollAttempts,
		logger:   logging.NewComponentLogger(logger, "scan"),
	}
}

// Submit posts req and returns the scan identifier.
func (c *Client) Submit(ctx context.Context, req Request) (string, error) {
	resp, err := c.http.R().SetContext(ctx).SetBody(req).Post("/scan/asset")
	if err := services.CheckResponse("scan", "submit", resp, err); err != nil {
		return "", err
	}
	id := scanID(resp.Body())
	if id == "" {
		return "", services.Wrap(services.ErrExternalTool, "scan", "submit", "empty scan id", nil)
	}
	return id, nil
}

// Status returns the current state of scan id.
func (c *Client) Status(ctx context.Context, id string) (string, error) {
	var out struct {
		State string `json:"state"`
	}
	resp, err := c.http.R().SetContext(ctx).Get("/scan/asset/" + id)
	if err := services.CheckResponse("scan", "status", resp, err); err != nil {
		return "", err
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "scan", "status", "decode response", err)
	}
	return strings.TrimSpace(out.State), nil
}

// Wait polls scan id every interval until it completes, fails or the
// attempt budget runs out. Poll errors are logged and polling continues.
func (c *Client) Wait(ctx context.Context, id string, interval time.Duration) error {
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if err := services.Sleep(ctx, interval); err != nil {
			return err
		}
		state, err := c.Status(ctx, id)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			c.logger.Warn("scan status request failed",
				logging.String("scan_id", id),
				logging.Int("attempt", attempt),
				logging.Error(err),
			)
			continue
		}
		switch state {
		case StateComplete:
			return nil
		case StateFailed:
			return services.Wrap(services.ErrExternalTool, "scan", "status", "scan failed", nil)
		case StateInProgress, StateQueued:
			c.logger.Debug("waiting for scan", logging.String("scan_id", id), logging.String("state", state))
		default:
			return services.Wrap(services.ErrUnknownState, "scan", "status", fmt.Sprintf("unknown state %q", state), nil)
		}
	}
	return services.Wrap(services.ErrTimeout, "scan", "status", fmt.Sprintf("no result after %d polls", c.attempts), nil)
}

// PollInterval scales the status poll delay with the file size.
func PollInterval(sizeBytes int64) time.Duration {
	switch {
	case sizeBytes > 1_000_000_000:
		return 10 * time.Second
	case sizeBytes > 500_000_000:
		return 5 * time.Second
	case sizeBytes > 100_000_000:
		return 3 * time.Second
	default:
		return 2 * time.Second
	}
}

// scanID extracts the identifier from the submit response, which is a JSON
// string whose content is itself wrapped in quotes.
func scanID(body []byte) string {
	text := strings.TrimSpace(string(body))
	var decoded string
	if err := json.Unmarshal(body, &decoded); err == nil {
		text = decoded
	}
	return strings.Trim(strings.TrimSpace(text), `"`)
}
