package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"arcmigrate/internal/config"
	"arcmigrate/internal/logging"
	"arcmigrate/internal/payload"
	"arcmigrate/internal/services"
)

// Service is the catalog surface the migration uses.
type Service interface {
	Search(ctx context.Context, before string) (SearchResult, error)
	Results(ctx context.Context, cacheID string, limit int) ([]json.RawMessage, error)
	DeleteClip(ctx context.Context, clipID int64) error
}

// SearchResult identifies a cached server-side search.
type SearchResult struct {
	CacheID string
	Results int
}

// Client talks to the asset catalog REST API.
type Client struct {
	http          *resty.Client
	mediaSpace    string
	excludeCodec  string
	searchTimeout time.Duration
	recheckDelay  time.Duration
	logger        *slog.Logger
}

// NewClient builds a catalog client from configuration.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		http: services.NewRESTClient(services.ClientOptions{
			BaseURL:            cfg.Catalog.BaseURL,
			Username:           cfg.Catalog.Username,
			Password:           cfg.Catalog.Password,
			Timeout:            time.Duration(cfg.Catalog.RequestTimeout) * time.Second,
			RetryCount:         cfg.Catalog.RetryAttempts,
			InsecureSkipVerify: cfg.Catalog.InsecureSkipVerify,
		}),
		mediaSpace:    cfg.Catalog.MediaSpace,
		excludeCodec:  cfg.Catalog.ExcludeCodec,
		searchTimeout: time.Duration(cfg.Catalog.SearchTimeout) * time.Second,
		recheckDelay:  time.Duration(cfg.Catalog.DeleteRecheckDelay) * time.Second,
		logger:        logging.NewComponentLogger(logger, "catalog"),
	}
}

type searchField struct {
	FixedField string `json:"fixed_field"`
	Group      string `json:"group"`
	Type       string `json:"type"`
}

type searchFilter struct {
	Field  searchField `json:"field"`
	Match  string      `json:"match"`
	Search string      `json:"search"`
}

type searchRequest struct {
	Combine string         `json:"combine"`
	Filters []searchFilter `json:"filters"`
}

func filter(field, kind, match, value string) searchFilter {
	return searchFilter{
		Field:  searchField{FixedField: field, Group: "SEARCH_FILES", Type: kind},
		Match:  match,
		Search: value,
	}
}

// Search starts a cached search for online files in the media space that
// were created before the given date and are not yet in the target codec.
func (c *Client) Search(ctx context.Context, before string) (SearchResult, error) {
	body := searchRequest{
		Combine: "MATCH_ALL",
		Filters: []searchFilter{
			filter("MEDIA_SPACES_NAMES", "QString", "EQUAL_TO", c.mediaSpace),
			filter("VIDEO_CODEC_TYPE", "QString", "IS_NOT_EQUAL_TO", c.excludeCodec),
			filter("STATUS", "QString", "EQUAL_TO", "online"),
			filter("CREATED", "QDate", "LESS_THAN", before),
		},
	}
	if c.searchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.searchTimeout)
		defer cancel()
	}

	var raw struct {
		CacheID json.RawMessage `json:"cache_id"`
		Results payload.FlexInt `json:"results"`
	}
	resp, err := c.http.R().SetContext(ctx).SetBody(body).Post("/search/cached")
	if err := services.CheckResponse("catalog", "search", resp, err); err != nil {
		return SearchResult{}, err
	}
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return SearchResult{}, services.Wrap(services.ErrExternalTool, "catalog", "search", "decode response", err)
	}
	cacheID := unquote(raw.CacheID)
	if cacheID == "" {
		return SearchResult{}, services.Wrap(services.ErrNotFound, "catalog", "search", "no files created before "+before, nil)
	}
	c.logger.Info("catalog search cached",
		logging.String("cache_id", cacheID),
		logging.Int("results", int(raw.Results)),
		logging.String("before", before),
	)
	return SearchResult{CacheID: cacheID, Results: int(raw.Results)}, nil
}

// Results fetches up to limit records from a cached search.
func (c *Client) Results(ctx context.Context, cacheID string, limit int) ([]json.RawMessage, error) {
	var out struct {
		Results []json.RawMessage `json:"results"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"start": "0", "max_results": strconv.Itoa(limit)}).
		Get("/search/cached/" + cacheID)
	if err := services.CheckResponse("catalog", "results", resp, err); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "catalog", "results", "decode response", err)
	}
	return out.Results, nil
}

// DeleteClip removes a clip and all its files from the catalog. When the
// delete call fails the clip is re-queried after a delay; only a 404 on the
// re-query counts as deleted.
func (c *Client) DeleteClip(ctx context.Context, clipID int64) error {
	id := strconv.FormatInt(clipID, 10)
	resp, err := c.http.R().SetContext(ctx).SetQueryParam("all", "true").Delete("/clips/" + id)
	deleteErr := services.CheckResponse("catalog", "delete clip", resp, err)
	if deleteErr == nil {
		return nil
	}
	if errors.Is(deleteErr, context.Canceled) {
		return deleteErr
	}
	logging.WarnWithContext(c.logger, "clip delete failed; re-checking", "clip_delete_recheck",
		logging.Int64(logging.FieldClipID, clipID),
		logging.Error(deleteErr),
	)
	if err := services.Sleep(ctx, c.recheckDelay); err != nil {
		return err
	}
	resp, err = c.http.R().SetContext(ctx).Get("/clips/" + id)
	checkErr := services.CheckResponse("catalog", "get clip", resp, err)
	switch {
	case checkErr == nil:
		return fmt.Errorf("clip %d still present: %w", clipID, deleteErr)
	case errors.Is(checkErr, services.ErrNotFound):
		c.logger.Info("clip absent after failed delete",
			logging.Int64(logging.FieldClipID, clipID),
		)
		return nil
	default:
		return fmt.Errorf("clip %d delete unconfirmed: %w", clipID, errors.Join(deleteErr, checkErr))
	}
}

func unquote(raw json.RawMessage) string {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.Trim(text, `"`)
}
