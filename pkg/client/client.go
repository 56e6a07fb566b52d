// pkg/client/client.go
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/valpere/FeedHarvester/pkg/types"
)

// Client calls a FeedHarvester server's job API
type Client struct {
	http *resty.Client
}

// Option configures a Client
type Option func(*resty.Client)

// WithTimeout bounds each request. Harvests are slow, so the default is
// generous.
func WithTimeout(d time.Duration) Option {
	return func(c *resty.Client) { c.SetTimeout(d) }
}

// WithRetry retries requests rejected by the server's rate limiter
func WithRetry(count int, wait time.Duration) Option {
	return func(c *resty.Client) {
		c.SetRetryCount(count).
			SetRetryWaitTime(wait).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return err == nil && r.StatusCode() == 429
			})
	}
}

// WithHeader sets a header on every request
func WithHeader(key, value string) Option {
	return func(c *resty.Client) { c.SetHeader(key, value) }
}

// New creates a client for the server at baseURL
func New(baseURL string, opts ...Option) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetTimeout(15 * time.Minute)
	for _, opt := range opts {
		opt(c)
	}
	return &Client{http: c}
}

// FetchPosts harvests posts for a search term
func (c *Client) FetchPosts(ctx context.Context, req types.FetchPostsRequest) ([]types.Post, error) {
	var out types.Outcome[types.Post]
	if err := c.post(ctx, types.EndpointFetchTweets, req, &out); err != nil {
		return nil, err
	}
	return records(out)
}

// FetchVideos harvests video listings for a search term
func (c *Client) FetchVideos(ctx context.Context, req types.FetchVideosRequest) ([]types.Video, error) {
	var out types.Outcome[types.Video]
	if err := c.post(ctx, types.EndpointFetchVideos, req, &out); err != nil {
		return nil, err
	}
	return records(out)
}

// FetchComments harvests comments of one video
func (c *Client) FetchComments(ctx context.Context, req types.FetchCommentsRequest) ([]types.Comment, error) {
	var out types.Outcome[types.Comment]
	if err := c.post(ctx, types.EndpointFetchComments, req, &out); err != nil {
		return nil, err
	}
	return records(out)
}

// FetchAll runs the posts and videos harvests for one term. Each side of
// the response carries its own error.
func (c *Client) FetchAll(ctx context.Context, req types.FetchAllRequest) (*types.CompositeResponse, error) {
	var out types.CompositeResponse
	if err := c.post(ctx, types.EndpointFetchAll, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health returns the server's health report. An unhealthy server yields
// the report together with an error.
func (c *Client) Health(ctx context.Context) (map[string]interface{}, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get(types.EndpointHealth.String())
	if err != nil {
		return nil, fmt.Errorf("health request failed: %w", err)
	}

	var out map[string]interface{}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("health: %s: failed to decode response: %w", resp.Status(), err)
	}
	if resp.IsError() {
		return out, fmt.Errorf("health: %s", resp.Status())
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, endpoint types.Endpoint, body, out interface{}) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(endpoint.String())
	if err != nil {
		return fmt.Errorf("%s request failed: %w", endpoint, err)
	}

	if resp.IsError() {
		var e types.ErrorResponse
		if json.Unmarshal(resp.Body(), &e) == nil && e.Error != "" {
			return fmt.Errorf("%s: %s: %s", endpoint, resp.Status(), e.Error)
		}
		return fmt.Errorf("%s: %s", endpoint, resp.Status())
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", endpoint, err)
	}
	return nil
}

func records[T any](out types.Outcome[T]) ([]T, error) {
	if out.Err != nil {
		return nil, out.Err
	}
	return out.Records, nil
}
