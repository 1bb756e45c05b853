package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"arcmigrate/internal/config"
	"arcmigrate/internal/logging"
	"arcmigrate/internal/services"
)

// Copy operation states.
const (
	StatusInitial  = "Initial"
	StatusRunning  = "Running"
	StatusComplete = "Complete"
	StatusFailed   = "Failed"
)

// statusRetryAttempts bounds retries of a single failed status poll.
const statusRetryAttempts = 3

// Service copies files through the transfer service.
type Service interface {
	Copy(ctx context.Context, source, destination string) error
}

// Client talks to the transfer service.
type Client struct {
	http       *resty.Client
	mediaSpace string
	user       string
	password   string
	interval   time.Duration
	attempts   int
	logger     *slog.Logger
}

// NewClient builds a transfer client from configuration.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		http: services.NewRESTClient(services.ClientOptions{
			BaseURL:            cfg.Transfer.BaseURL,
			Username:           cfg.Transfer.User,
			Password:           cfg.Transfer.Password,
			Timeout:            time.Duration(cfg.Transfer.RequestTimeout) * time.Second,
			InsecureSkipVerify: cfg.Catalog.InsecureSkipVerify,
		}),
		mediaSpace: cfg.Catalog.MediaSpace,
		user:       cfg.Transfer.User,
		password:   cfg.Transfer.Password,
		interval:   time.Duration(cfg.Transfer.PollInterval) * time.Second,
		attempts:   cfg.Transfer.PollAttempts,
		logger:     logging.NewComponentLogger(logger, "transfer"),
	}
}

type copyOperation struct {
	SourcePath            string `json:"source_path"`
	DestinationMediaSpace string `json:"destination_mediaspace"`
	DestinationPath       string `json:"destination_path"`
	User                  string `json:"user"`
	Pass                  string `json:"pass,omitempty"`
	OperationPriority     string `json:"operation_priority"`
	OperationStatus       string `json:"operation_status"`
	OverwriteFlag         string `json:"overwrite_flag"`
	PartialCopy           string `json:"partial_copy"`
}

type copyRequest struct {
	MoveOperationList   []copyOperation `json:"move_operation_list"`
	CopyOperationList   []copyOperation `json:"copy_operation_list"`
	DeleteOperationList []copyOperation `json:"delete_operation_list"`
	OperationStatus     string          `json:"operation_status"`
}

// Copy starts a copy of source to destination and waits for it to finish.
func (c *Client) Copy(ctx context.Context, source, destination string) error {
	id, err := c.Start(ctx, source, destination)
	if err != nil {
		return err
	}
	return c.Wait(ctx, id)
}

// Start submits a copy operation and returns its transfer identifier.
func (c *Client) Start(ctx context.Context, source, destination string) (string, error) {
	body := copyRequest{
		MoveOperationList:   []copyOperation{},
		DeleteOperationList: []copyOperation{},
		OperationStatus:     StatusInitial,
		CopyOperationList: []copyOperation{{
			SourcePath:            source,
			DestinationMediaSpace: c.mediaSpace,
			DestinationPath:       destination,
			User:                  c.user,
			Pass:                  c.password,
			OperationPriority:     "High",
			OperationStatus:       StatusInitial,
			OverwriteFlag:         "true",
			PartialCopy:           "false",
		}},
	}
	resp, err := c.http.R().SetContext(ctx).SetBody(body).Post("/transfer/copy")
	if err := services.CheckResponse("transfer", "copy", resp, err); err != nil {
		return "", err
	}
	var out []struct {
		Transfer json.RawMessage `json:"transfer"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil || len(out) == 0 {
		return "", services.Wrap(services.ErrExternalTool, "transfer", "copy", "decode transfer id", err)
	}
	id := string(out[0].Transfer)
	var text string
	if json.Unmarshal(out[0].Transfer, &text) == nil {
		id = text
	}
	c.logger.Info("transfer started",
		logging.String("transfer_id", id),
		logging.String("destination", destination),
	)
	return id, nil
}

// Status returns the operation status of transfer id.
func (c *Client) Status(ctx context.Context, id string) (string, error) {
	resp, err := c.http.R().SetContext(ctx).Get("/transfer/copy/" + id)
	if err := services.CheckResponse("transfer", "status", resp, err); err != nil {
		return "", err
	}
	var out []struct {
		OperationStatus string `json:"operation_status"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil || len(out) == 0 {
		return "", services.Wrap(services.ErrExternalTool, "transfer", "status", "decode status", err)
	}
	return out[0].OperationStatus, nil
}

// Wait polls transfer id until it completes or fails, up to the configured
// number of polls. Transport errors on a poll are retried a bounded number
// of times before the copy is abandoned.
func (c *Client) Wait(ctx context.Context, id string) error {
	last := ""
	for attempt := 1; attempt <= c.attempts; attempt++ {
		var state string
		err := services.Retry(ctx, statusRetryAttempts, c.interval, func(ctx context.Context) error {
			var statusErr error
			state, statusErr = c.Status(ctx, id)
			return statusErr
		})
		if err != nil {
			return err
		}
		if state != last {
			c.logger.Debug("transfer state", logging.String("transfer_id", id), logging.String("state", state))
			last = state
		}
		switch state {
		case StatusComplete:
			return nil
		case StatusFailed:
			return services.Wrap(services.ErrExternalTool, "transfer", "status", "copy failed", nil)
		case StatusInitial, StatusRunning:
		default:
			return services.Wrap(services.ErrUnknownState, "transfer", "status", fmt.Sprintf("unknown state %q", state), nil)
		}
		if err := services.Sleep(ctx, c.interval); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			return services.Wrap(services.ErrTimeout, "transfer", "status", "wait interrupted", err)
		}
	}
	return services.Wrap(services.ErrTimeout, "transfer", "status", fmt.Sprintf("copy %s not finished after %d polls", id, c.attempts), nil)
}
