package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ardanlabs/pixelboard/foundation/events"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/grid"
)

// Cell is a cell as reported by the pixel board service.
type Cell struct {
	grid.Cell
	OwnerName string `json:"owner_name"`
}

// Pixels is the grid as reported by the pixel board service.
type Pixels struct {
	Size      int    `json:"size"`
	Loading   bool   `json:"loading"`
	LastError string `json:"last_error"`
	Cells     []Cell `json:"cells"`
}

// Action is the outcome of selecting a cell.
type Action struct {
	Kind   string `json:"kind"`
	Cell   Cell   `json:"cell"`
	FlowID string `json:"flow_id"`
}

// Client calls the pixel board service.
type Client struct {
	url  string
	http *http.Client
}

// NewClient constructs a client for the service at the url.
func NewClient(url string) *Client {
	return &Client{
		url:  strings.TrimRight(url, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// Pixels returns the service's cached grid.
func (c *Client) Pixels(ctx context.Context) (Pixels, error) {
	var p Pixels
	if err := c.do(ctx, http.MethodGet, "/v1/pixels", &p); err != nil {
		return Pixels{}, err
	}
	return p, nil
}

// Select acts on the cell at the coordinates.
func (c *Client) Select(ctx context.Context, x int, y int) (Action, error) {
	var act Action
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/cells/%d/%d/select", x, y), &act); err != nil {
		return Action{}, err
	}
	return act, nil
}

// Notices returns the notices that have not expired.
func (c *Client) Notices(ctx context.Context) ([]events.Notice, error) {
	var notices []events.Notice
	if err := c.do(ctx, http.MethodGet, "/v1/notices", &notices); err != nil {
		return nil, err
	}
	return notices, nil
}

func (c *Client) do(ctx context.Context, method string, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.url+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var er struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&er); err != nil || er.Error == "" {
			return fmt.Errorf("%s %s: %s", method, path, resp.Status)
		}
		return fmt.Errorf("%s %s: %s", method, path, er.Error)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}

	return nil
}
