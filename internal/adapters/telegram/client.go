/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/HamedShams/sprint-pulse/internal/config"
	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://api.telegram.org"

type Client struct {
	token   string
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
	return &Client{token: cfg.TelegramToken, baseURL: defaultBaseURL, http: &http.Client{Timeout: 10 * time.Second}, log: log}
}

func (c *Client) call(ctx context.Context, method string, body map[string]any, out any) error {
	url := fmt.Sprintf("%s/bot%s/%s", strings.TrimRight(c.baseURL, "/"), c.token, method)
	b, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram %s status=%d body=%s", method, resp.StatusCode, string(bodyBytes))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// SendMessagePlain sends without parse_mode to avoid markdown parsing errors
func (c *Client) SendMessagePlain(ctx context.Context, chatID int64, text string) error {
	if c.token == "" || chatID == 0 {
		return fmt.Errorf("telegram: missing token or chat id")
	}
	return c.call(ctx, "sendMessage", map[string]any{"chat_id": chatID, "text": text, "disable_web_page_preview": true}, nil)
}

func (c *Client) ResolveUsername(ctx context.Context, username string) (int64, error) {
	if c.token == "" || username == "" {
		return 0, fmt.Errorf("telegram: missing token or username")
	}
	var r struct {
		OK     bool `json:"ok"`
		Result struct {
			ID int64 `json:"id"`
		} `json:"result"`
	}
	if err := c.call(ctx, "getChat", map[string]any{"chat_id": username}, &r); err != nil {
		return 0, err
	}
	if !r.OK || r.Result.ID == 0 {
		return 0, fmt.Errorf("telegram: invalid getChat response")
	}
	return r.Result.ID, nil
}

// Notify delivers text to a recipient given as a numeric chat id or an
// @username.
func (c *Client) Notify(ctx context.Context, recipient, text string) error {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return fmt.Errorf("telegram: empty recipient")
	}
	chatID, err := strconv.ParseInt(recipient, 10, 64)
	if err != nil {
		if chatID, err = c.ResolveUsername(ctx, recipient); err != nil {
			return fmt.Errorf("telegram: resolve %s: %w", recipient, err)
		}
	}
	return c.SendMessagePlain(ctx, chatID, text)
}
