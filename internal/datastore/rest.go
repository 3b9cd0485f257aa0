package datastore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gojek/heimdall/v7"
	"github.com/gojek/heimdall/v7/httpclient"
	"github.com/segmentio/encoding/json"
)

const (
	restPathPrefix     = "/rest/v1/"
	restBodySnippetMax = 256
	DefaultTimeout     = 4 * time.Second
)

type RESTConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Retries int
	Tables  TableNames
}

// RemoteError is returned for any non-2xx answer from the remote store.
type RemoteError struct {
	Method string
	Table  string
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s %s: status %d: %s", e.Method, e.Table, e.Status, e.Body)
}

// REST talks to a PostgREST-compatible interface, one resource per table.
type REST struct {
	cfg    RESTConfig
	client *httpclient.Client
}

func NewREST(cfg RESTConfig) *REST {
	if cfg.Tables == nil {
		cfg.Tables = DefaultTableNames()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	opts := []httpclient.Option{
		httpclient.WithHTTPTimeout(cfg.Timeout),
	}
	if cfg.Retries > 0 {
		backoff := heimdall.NewConstantBackoff(100*time.Millisecond, 50*time.Millisecond)
		opts = append(opts,
			httpclient.WithRetryCount(cfg.Retries),
			httpclient.WithRetrier(heimdall.NewRetrier(backoff)),
		)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &REST{cfg: cfg, client: httpclient.NewClient(opts...)}
}

func (r *REST) Get(ctx context.Context, table Table, filter Filter) ([]Row, error) {
	q := encodeFilter(filter)
	q.Set("select", "*")
	return r.do(ctx, http.MethodGet, table, q, nil, "")
}

func (r *REST) Upsert(ctx context.Context, table Table, rows []Row, conflict ...string) ([]Row, error) {
	return r.write(ctx, table, rows, conflict, "resolution=merge-duplicates,return=representation")
}

func (r *REST) InsertIgnore(ctx context.Context, table Table, rows []Row, conflict ...string) ([]Row, error) {
	return r.write(ctx, table, rows, conflict, "resolution=ignore-duplicates,return=representation")
}

func (r *REST) write(ctx context.Context, table Table, rows []Row, conflict []string, prefer string) ([]Row, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	columns, err := conflictColumns(table, conflict)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(rows)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("on_conflict", strings.Join(columns, ","))
	return r.do(ctx, http.MethodPost, table, q, body, prefer)
}

func (r *REST) Delete(ctx context.Context, table Table, filter Filter) (int, error) {
	if len(filter.Where) == 0 {
		return 0, ErrEmptyFilter
	}
	rows, err := r.do(ctx, http.MethodDelete, table, encodeFilter(filter), nil, "return=representation")
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (r *REST) do(ctx context.Context, method string, table Table, query url.Values, body []byte, prefer string) ([]Row, error) {
	name, err := r.cfg.Tables.Name(table)
	if err != nil {
		return nil, err
	}
	endpoint := r.cfg.BaseURL + restPathPrefix + url.PathEscape(name)
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", r.cfg.APIKey)
	req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := r.client.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("remote %s %s: %w", method, name, err)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("remote %s %s: read body: %w", method, name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(payload)
		if len(snippet) > restBodySnippetMax {
			snippet = snippet[:restBodySnippetMax]
		}
		return nil, &RemoteError{Method: method, Table: name, Status: resp.StatusCode, Body: snippet}
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, nil
	}

	var rows []Row
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, fmt.Errorf("remote %s %s: malformed body: %w", method, name, err)
	}
	return rows, nil
}

func encodeFilter(filter Filter) url.Values {
	q := url.Values{}
	for _, c := range filter.Where {
		q.Add(c.Column, string(c.Op)+"."+formatValue(c.Value))
	}
	if filter.OrderBy != "" {
		dir := "asc"
		if filter.Desc {
			dir = "desc"
		}
		q.Set("order", filter.OrderBy+"."+dir)
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	return q
}

func formatValue(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if t == nil {
			return "null"
		}
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}
