// Package twos posts highlights to the Twos "add to today" endpoint.
package twos

import (
	"context"
	"errors"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mrlokans/highlightsync/internal/delivery"
)

const (
	DefaultBaseURL = "https://www.twosapp.com"
	addToTodayPath = "/apiV2/user/addToToday"

	defaultTimeout = 30 * time.Second

	// dayTitleLayout matches the list title Twos shows for a day.
	dayTitleLayout = "Mon Jan 02, 2006"
)

// ErrNotConfigured is returned when the user id or token is missing.
var ErrNotConfigured = errors.New("twos user id and token are required")

type Config struct {
	UserID  string
	Token   string
	BaseURL string
	Timeout time.Duration
}

type addToTodayRequest struct {
	Text   string `json:"text"`
	Title  string `json:"title"`
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

// Client implements delivery.Client for Twos.
type Client struct {
	http   *resty.Client
	userID string
	token  string
	now    func() time.Time
}

var _ delivery.Client = (*Client)(nil)

// NewClient creates a Twos client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.UserID == "" || cfg.Token == "" {
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
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:   httpClient,
		userID: cfg.UserID,
		token:  cfg.Token,
		now:    time.Now,
	}, nil
}

func (c *Client) Name() string {
	return "twos"
}

// Post adds text as a new line under today's list.
func (c *Client) Post(ctx context.Context, text string) error {
	payload := addToTodayRequest{
		Text:   text,
		Title:  c.now().Format(dayTitleLayout),
		Token:  c.token,
		UserID: c.userID,
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post(addToTodayPath)
	if err != nil {
		return delivery.ClassifyTransport(err)
	}

	return delivery.ClassifyStatus(resp.StatusCode(), resp.String())
}
