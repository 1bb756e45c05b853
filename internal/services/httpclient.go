package services

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ClientOptions configures a collaborator HTTP client.
type ClientOptions struct {
	BaseURL            string
	Username           string
	Password           string
	Timeout            time.Duration
	RetryCount         int
	InsecureSkipVerify bool
}

// NewRESTClient builds a resty client with basic auth and retries on
// throttling and gateway errors.
func NewRESTClient(opts ClientOptions) *resty.Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if r == nil {
				return false
			}
			return r.StatusCode() == 429 || (r.StatusCode() >= 502 && r.StatusCode() <= 504)
		})
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	if opts.Username != "" || opts.Password != "" {
		client.SetBasicAuth(opts.Username, opts.Password)
	}
	if opts.InsecureSkipVerify {
		client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec // catalog appliances ship self-signed certs
	}
	return client
}

// CheckResponse converts a resty result into a marked error. Transport
// failures become ErrTransient (or ErrTimeout), 404 becomes ErrNotFound and
// other non-2xx codes become ErrExternalTool.
func CheckResponse(stage, operation string, resp *resty.Response, err error) error {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return Wrap(ErrTimeout, stage, operation, "request timed out", err)
		}
		return Wrap(ErrTransient, stage, operation, "request failed", err)
	}
	if resp == nil {
		return Wrap(ErrTransient, stage, operation, "empty response", nil)
	}
	if resp.IsSuccess() {
		return nil
	}
	detail := fmt.Sprintf("status %d", resp.StatusCode())
	if body := strings.TrimSpace(resp.String()); body != "" {
		if len(body) > 200 {
			body = body[:200]
		}
		detail += ": " + body
	}
	switch {
	case resp.StatusCode() == 404:
		return Wrap(ErrNotFound, stage, operation, detail, nil)
	case resp.StatusCode() >= 500:
		return Wrap(ErrTransient, stage, operation, detail, nil)
	default:
		return Wrap(ErrExternalTool, stage, operation, detail, nil)
	}
}
