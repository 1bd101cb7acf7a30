// Package neoapi is the client for the observation and actuation service:
// the telescope sweep endpoints, the railgun and the status probe.
package neoapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/neocrisis/internal/httputil"
	"github.com/banshee-data/neocrisis/internal/version"
)

// ErrInvalidOctant is returned for octants outside [MinOctant, MaxOctant].
var ErrInvalidOctant = errors.New("neoapi: octant out of range")

// APIError is a non-2xx reply from the service.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("neoapi: %s: %d %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("neoapi: %s: %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *APIError) Unwrap() error { return e.Err }

// Client talks to one service instance.
type Client struct {
	baseURL   string
	http      httputil.HTTPClient
	loc       *time.Location
	userAgent string
}

// BaseURL builds the service root from host and port.
func BaseURL(host string, port int) string {
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// NewClient returns a client for the service at baseURL. loc is the
// server's time zone, used for naive timestamps in both directions.
func NewClient(baseURL string, c httputil.HTTPClient, loc *time.Location) *Client {
	if loc == nil {
		loc = time.Local
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      c,
		loc:       loc,
		userAgent: version.UserAgent(),
	}
}

// Location is the server time zone the client was built with.
func (c *Client) Location() *time.Location {
	return c.loc
}

// Observe lists the objects currently visible in octant.
func (c *Client) Observe(ctx context.Context, octant int) ([]Object, error) {
	if octant < MinOctant || octant > MaxOctant {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOctant, octant)
	}
	var obs Observation
	op := fmt.Sprintf("telescope %d", octant)
	if err := c.do(ctx, op, http.MethodGet, "/telescope/"+strconv.Itoa(octant), nil, &obs); err != nil {
		return nil, err
	}
	return obs.Objects, nil
}

// Fire submits a railgun command and returns the slug the service created.
func (c *Client) Fire(ctx context.Context, req FireRequest) (*Object, error) {
	body := fireBody{
		Name:   req.Name,
		Theta:  req.Theta,
		Phi:    req.Phi,
		Target: req.Target,
	}
	if req.Fired != nil {
		body.Fired = FormatFired(*req.Fired, c.loc)
	}
	var resp fireResponse
	if err := c.do(ctx, "railgun", http.MethodPost, "/railgun", body, &resp); err != nil {
		return nil, err
	}
	return &resp.Object, nil
}

// Info fetches the service status.
func (c *Client) Info(ctx context.Context) (*Info, error) {
	var info Info
	if err := c.do(ctx, "info", http.MethodGet, "/info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out interface{}) error {
	err := httputil.DoJSON(ctx, c.http, method, c.baseURL+path, c.userAgent, in, out)
	if err == nil {
		return nil
	}
	var se *httputil.StatusError
	if errors.As(err, &se) {
		return &APIError{Op: op, StatusCode: se.StatusCode, Message: se.Message, Err: err}
	}
	return fmt.Errorf("neoapi: %s: %w", op, err)
}
