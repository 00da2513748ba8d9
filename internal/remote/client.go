// Package remote fetches incremental pages of the document collections from
// a remote store. Two backends are provided: Client talks to the document
// service over HTTP and DatastoreFetcher reads Google Cloud Datastore.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/atinyakov/OfficeSync/internal/feed"
	"github.com/atinyakov/OfficeSync/internal/models"
	"go.uber.org/zap"
)

// DefaultTimeout bounds every request of a Client built without an
// explicit *http.Client.
const DefaultTimeout = 10 * time.Second

// StatusError is returned when the document service answers with a
// non-success status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote: status %d: %s", e.Code, e.Body)
}

// Client is the HTTP backend of the remote document store.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

// NewClient returns a Client for the service at baseURL. A nil httpClient
// gets a default client with DefaultTimeout; a nil logger is replaced by a
// no-op logger.
func NewClient(baseURL string, httpClient *http.Client, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		log:     log,
	}
}

// FetchUsers returns one page of users changed after q.Since.
func (c *Client) FetchUsers(ctx context.Context, q feed.Query) (feed.Page[models.User], error) {
	q.Entity = models.EntityUsers
	return Fetch[models.User](ctx, c, q)
}

// FetchTasks returns one page of q.Owner's tasks changed after q.Since.
func (c *Client) FetchTasks(ctx context.Context, q feed.Query) (feed.Page[models.Task], error) {
	q.Entity = models.EntityTasks
	return Fetch[models.Task](ctx, c, q)
}

// Fetch retrieves one page of q.Entity. The query is validated before any
// request is made. Data is ordered ascending by updatedAt and HasMore is
// true iff the page is full.
func Fetch[T any](ctx context.Context, c *Client, q feed.Query) (feed.Page[T], error) {
	q, err := q.Validate()
	if err != nil {
		return feed.Page[T]{}, err
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(q.PageSize))
	if !q.Since.IsZero() {
		params.Set("since", models.FormatTime(q.Since))
	}
	if q.Owner != "" {
		params.Set("owner", q.Owner)
	}
	if q.Token != "" {
		params.Set("token", q.Token)
	}
	endpoint := c.baseURL + "/api/" + url.PathEscape(q.Entity) + "/changes?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return feed.Page[T]{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return feed.Page[T]{}, fmt.Errorf("fetch %s: %w", q.Entity, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return feed.Page[T]{}, statusError(resp)
	}

	var page feed.Page[T]
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return feed.Page[T]{}, fmt.Errorf("decode %s page: %w", q.Entity, err)
	}
	if page.Data == nil {
		page.Data = []T{}
	}
	page.HasMore = feed.HasMore(len(page.Data), q.PageSize)
	if len(page.Data) == 0 {
		page.Token = ""
	}

	c.log.Debug("fetched page",
		zap.String("entity", q.Entity),
		zap.String("owner", q.Owner),
		zap.Int("count", len(page.Data)),
		zap.Bool("has_more", page.HasMore),
	)
	return page, nil
}

// PutUsers writes users to the document service.
func (c *Client) PutUsers(ctx context.Context, users []models.User) error {
	return c.put(ctx, models.EntityUsers, users)
}

// PutTasks writes tasks to the document service.
func (c *Client) PutTasks(ctx context.Context, tasks []models.Task) error {
	return c.put(ctx, models.EntityTasks, tasks)
}

func (c *Client) put(ctx context.Context, entity string, records any) error {
	b, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode %s: %w", entity, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/api/"+entity, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("put %s: %w", entity, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return nil
}

// TaskStats returns the number of remote tasks of each owner.
func (c *Client) TaskStats(ctx context.Context, owners []string) (map[string]int, error) {
	params := url.Values{}
	for _, o := range owners {
		params.Add("owner", o)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tasks/stats?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}
	var body struct {
		Tasks map[string]int `json:"tasks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode task stats: %w", err)
	}
	return body.Tasks, nil
}

// Online reports whether the document service answers its health probe.
func (c *Client) Online(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("health probe failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
