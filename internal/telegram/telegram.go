// Package telegram sends digest messages through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/deusflow/findigest/internal/logger"
)

const DefaultAPIURL = "https://api.telegram.org"

// ErrNoToken is returned when no bot token is configured. Only delivery depends
// on it.
var ErrNoToken = errors.New("telegram bot token is not set")

// DeliveryError is a failed sendMessage call. Status is 0 for transport errors.
type DeliveryError struct {
	ChatID      string
	Status      int
	Description string
	Err         error
}

func (e *DeliveryError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("send to %s: %v", e.ChatID, e.Err)
	case e.Description != "":
		return fmt.Sprintf("send to %s: status %d: %s", e.ChatID, e.Status, e.Description)
	default:
		return fmt.Sprintf("send to %s: status %d", e.ChatID, e.Status)
	}
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Temporary reports whether another attempt could succeed: transport errors,
// rate limiting and server errors.
func (e *DeliveryError) Temporary() bool {
	return e.Status == 0 || e.Status == http.StatusTooManyRequests || e.Status >= 500
}

type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewClient returns a Bot API client. apiURL defaults to the public endpoint.
func NewClient(token, apiURL string) (*Client, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{
		token:   token,
		baseURL: strings.TrimRight(apiURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendMessage posts text to chatID with Markdown formatting and link previews off.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		ParseMode:             "Markdown",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("error make JSON: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{ChatID: chatID, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &DeliveryError{ChatID: chatID, Err: redact(err, c.token)}
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logger.Warn("failed to close response body", "error", err)
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var out apiResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&out)
		return &DeliveryError{ChatID: chatID, Status: resp.StatusCode, Description: out.Description}
	}
	return nil
}

// redact keeps the bot token out of logged transport errors, which embed the URL.
func redact(err error, token string) error {
	msg := err.Error()
	if !strings.Contains(msg, token) {
		return err
	}
	return errors.New(strings.ReplaceAll(msg, token, "<token>"))
}
