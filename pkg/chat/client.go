package chat

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

	"daigo/pkg/config"
)

// Sender is the transport capability used by the delivery layer and the
// dispatcher. The platform client implements it; tests use fakes.
type Sender interface {
	Reply(ctx context.Context, replyToken string, msgs ...Message) error
	Push(ctx context.Context, to string, msgs ...Message) error
	Profile(ctx context.Context, userID string) (Profile, error)
	Loading(ctx context.Context, chatID string, seconds int) error
}

type Client struct {
	base  string
	token string
	http  *http.Client
}

func NewClient(cfg config.ChatConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		base:  strings.TrimRight(cfg.APIBase, "/"),
		token: cfg.AccessToken,
		http:  &http.Client{Timeout: timeout},
	}
}

// APIError is a non-2xx response from the messaging API.
type APIError struct {
	Status  int
	Message string
	Details []string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat api: status %d: %s", e.Status, e.Message)
}

// IsInvalidReplyToken reports whether err is the platform's rejection of an
// expired or already-used reply token. The marker can appear either in the
// top-level message or in a nested detail.
func IsInvalidReplyToken(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if strings.Contains(strings.ToLower(apiErr.Message), "invalid reply token") {
		return true
	}
	for _, d := range apiErr.Details {
		if strings.Contains(strings.ToLower(d), "invalid reply token") {
			return true
		}
	}
	return false
}

func (c *Client) Reply(ctx context.Context, replyToken string, msgs ...Message) error {
	body := map[string]interface{}{
		"replyToken": replyToken,
		"messages":   msgs,
	}
	return c.post(ctx, "/v2/bot/message/reply", body)
}

func (c *Client) Push(ctx context.Context, to string, msgs ...Message) error {
	if to == "" {
		return fmt.Errorf("push without recipient")
	}
	body := map[string]interface{}{
		"to":       to,
		"messages": msgs,
	}
	return c.post(ctx, "/v2/bot/message/push", body)
}

// Loading shows the platform's typing indicator for up to seconds. Free of
// message quota, so it is the preferred long-running acknowledgment.
func (c *Client) Loading(ctx context.Context, chatID string, seconds int) error {
	if seconds <= 0 {
		seconds = 30
	}
	body := map[string]interface{}{
		"chatId":         chatID,
		"loadingSeconds": seconds,
	}
	return c.post(ctx, "/v2/bot/chat/loading", body)
}

func (c *Client) Profile(ctx context.Context, userID string) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/v2/bot/profile/"+userID, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("profile request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Profile{}, decodeAPIError(resp)
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	return profile, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	var parsed struct {
		Message string `json:"message"`
		Details []struct {
			Message string `json:"message"`
		} `json:"details"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err := json.Unmarshal(data, &parsed); err == nil {
		apiErr.Message = parsed.Message
		for _, d := range parsed.Details {
			if d.Message != "" {
				apiErr.Details = append(apiErr.Details, d.Message)
			}
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}
