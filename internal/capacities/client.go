// Package capacities posts highlights to the Capacities daily note.
package capacities

import (
	"context"
	"errors"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mrlokans/highlightsync/internal/delivery"
)

const (
	DefaultBaseURL    = "https://api.capacities.io"
	saveDailyNotePath = "/save-to-daily-note"
	defaultTimeout    = 30 * time.Second
)

var ErrNotConfigured = errors.New("capacities token and space id are required")

type Config struct {
	Token   string
	SpaceID string
	BaseURL string
	Timeout time.Duration
}

type saveDailyNoteRequest struct {
	SpaceID string `json:"spaceId"`
	MDText  string `json:"mdText"`
}

// Client implements delivery.Client for Capacities.
type Client struct {
	http    *resty.Client
	spaceID string
}

var _ delivery.Client = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	if cfg.Token == "" || cfg.SpaceID == "" {
		return nil, ErrNotConfigured
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.Token).
		SetHeader("Content-Type", "application/json")

	return &Client{http: httpClient, spaceID: cfg.SpaceID}, nil
}

func (c *Client) Name() string {
	return "capacities"
}

// Post appends text as a markdown bullet to today's daily note.
func (c *Client) Post(ctx context.Context, text string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(saveDailyNoteRequest{SpaceID: c.spaceID, MDText: "- " + text}).
		Post(saveDailyNotePath)
	if err != nil {
		return delivery.ClassifyTransport(err)
	}
	return delivery.ClassifyStatus(resp.StatusCode(), resp.String())
}
