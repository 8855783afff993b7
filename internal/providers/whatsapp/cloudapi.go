package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Config struct {
	BaseURL       string
	PhoneNumberID string
	AccessToken   string
	Timeout       time.Duration
}

// CloudAPIProvider talks to the WhatsApp Business Cloud API messages endpoint.
type CloudAPIProvider struct {
	cfg    Config
	client *http.Client
}

func NewCloudAPI(cfg Config, client *http.Client) *CloudAPIProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &CloudAPIProvider{cfg: cfg, client: client}
}

type textMessage struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type textBody struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (p *CloudAPIProvider) SendText(ctx context.Context, to string, body string) (string, error) {
	payload, err := json.Marshal(textMessage{
		MessagingProduct: "whatsapp",
		To:               strings.TrimPrefix(strings.TrimSpace(to), "+"),
		Type:             "text",
		Text:             textBody{PreviewURL: true, Body: body},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s/messages", p.cfg.BaseURL, p.cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("whatsapp send: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("whatsapp read response: %w", err)
	}

	var decoded sendResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil && resp.StatusCode < 300 {
			return "", fmt.Errorf("whatsapp decode response: %w", err)
		}
	}

	if resp.StatusCode >= 300 {
		if decoded.Error != nil && decoded.Error.Message != "" {
			return "", fmt.Errorf("whatsapp send failed (%d): %s", resp.StatusCode, decoded.Error.Message)
		}
		return "", fmt.Errorf("whatsapp send failed with status %d", resp.StatusCode)
	}
	if len(decoded.Messages) == 0 || decoded.Messages[0].ID == "" {
		return "", fmt.Errorf("whatsapp send returned no message id")
	}
	return decoded.Messages[0].ID, nil
}
