package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"basegate/domain"
)

// ErrNotFound is returned when a record id does not resolve in the external
// store. Callers must distinguish it from transport failures.
var ErrNotFound = errors.New("record not found")

const defaultBaseURL = "https://api.airtable.com/v0"

// Client issues REST calls against the external tabular store. It does not
// retry: a failed call fails the whole logical operation.
type Client struct {
	httpClient *http.Client
	baseURL    string
	baseID     string
	apiKey     string
}

// ClientOptions tweaks a Client, mainly so tests can point it at a local server.
type ClientOptions struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a tabular store client for the given base.
func NewClient(apiKey, baseID string, opts *ClientOptions) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		baseID:     baseID,
		apiKey:     apiKey,
	}
	if opts != nil {
		if opts.BaseURL != "" {
			c.baseURL = strings.TrimRight(opts.BaseURL, "/")
		}
		if opts.HTTPClient != nil {
			c.httpClient = opts.HTTPClient
		}
	}
	return c
}

type recordPage struct {
	Records []domain.Record `json:"records"`
	Offset  string          `json:"offset,omitempty"`
}

type recordBatch struct {
	Records []domain.Record `json:"records"`
}

type deletedPage struct {
	Records []struct {
		ID      string `json:"id"`
		Deleted bool   `json:"deleted"`
	} `json:"records"`
}

// List fetches every record in a table, draining the store's offset-based
// paging. An optional filter formula is evaluated server-side.
func (c *Client) List(ctx context.Context, tableID, formula string) ([]domain.Record, error) {
	records := []domain.Record{}
	offset := ""
	for {
		query := url.Values{}
		if formula != "" {
			query.Set("filterByFormula", formula)
		}
		if offset != "" {
			query.Set("offset", offset)
		}
		var page recordPage
		if err := c.do(ctx, http.MethodGet, tableID, query, nil, &page); err != nil {
			return nil, err
		}
		records = append(records, page.Records...)
		if page.Offset == "" {
			return records, nil
		}
		offset = page.Offset
	}
}

// Get fetches a single record, returning ErrNotFound when the id does not
// resolve.
func (c *Client) Get(ctx context.Context, tableID, recordID string) (domain.Record, error) {
	var rec domain.Record
	err := c.do(ctx, http.MethodGet, tableID+"/"+recordID, nil, nil, &rec)
	return rec, err
}

// CreateBatch creates up to batchLimit records in one call. The store rejects
// larger batches; callers chunk via the adapter.
func (c *Client) CreateBatch(ctx context.Context, tableID string, records []domain.Record) ([]domain.Record, error) {
	var resp recordBatch
	if err := c.do(ctx, http.MethodPost, tableID, nil, recordBatch{Records: records}, &resp); err != nil {
		return nil, err
	}
	return resp.Records, nil
}

// UpdateBatch patches up to batchLimit records in one call. Each record must
// carry its id.
func (c *Client) UpdateBatch(ctx context.Context, tableID string, records []domain.Record) ([]domain.Record, error) {
	var resp recordBatch
	if err := c.do(ctx, http.MethodPatch, tableID, nil, recordBatch{Records: records}, &resp); err != nil {
		return nil, err
	}
	return resp.Records, nil
}

// DeleteBatch removes up to batchLimit records by id and returns the ids the
// store confirmed deleted, in request order.
func (c *Client) DeleteBatch(ctx context.Context, tableID string, recordIDs []string) ([]string, error) {
	query := url.Values{}
	for _, id := range recordIDs {
		query.Add("records[]", id)
	}
	var resp deletedPage
	if err := c.do(ctx, http.MethodDelete, tableID, query, nil, &resp); err != nil {
		return nil, err
	}
	deleted := make([]string, 0, len(resp.Records))
	for _, r := range resp.Records {
		if r.Deleted {
			deleted = append(deleted, r.ID)
		}
	}
	return deleted, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + "/" + c.baseID + "/" + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := sonic.ConfigStd.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tabular store: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("tabular store: %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if out == nil {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := sonic.ConfigStd.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
