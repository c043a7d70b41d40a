// Package whatsapp delivers chat messages through a GoWA gateway.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"crm_workflow_backend/internal/messages/domain"
	"crm_workflow_backend/platform/config"
	"crm_workflow_backend/platform/logger"
	"crm_workflow_backend/platform/phone"
)

type Client struct {
	baseURL  string
	apiKey   string
	deviceID string
	region   string
	http     *http.Client
	log      *logger.Logger
}

type sendMessageRequest struct {
	Phone          string `json:"phone"`
	Message        string `json:"message"`
	ReplyMessageID string `json:"reply_message_id,omitempty"`
}

type reactionRequest struct {
	Phone string `json:"phone"`
	Emoji string `json:"emoji"`
}

type gatewayResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Results struct {
		MessageID string `json:"message_id"`
		Status    string `json:"status"`
	} `json:"results"`
}

// NewClient returns nil when no gateway URL is configured.
func NewClient(cfg config.WhatsAppConfig, log *logger.Logger) *Client {
	if cfg.GetWhatsAppURL() == "" {
		return nil
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.GetWhatsAppURL(), "/"),
		apiKey:   cfg.GetWhatsAppKey(),
		deviceID: cfg.GetWhatsAppDeviceID(),
		region:   cfg.GetPhoneDefaultRegion(),
		http:     &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}
}

// Send delivers a text or a reaction and returns the gateway message id.
func (c *Client) Send(ctx context.Context, msg domain.OutboundMessage) (string, error) {
	normalized := strings.TrimPrefix(phone.NormalizeE164(msg.To, c.region), "+")
	if normalized == "" {
		return "", fmt.Errorf("whatsapp: empty recipient")
	}

	var (
		path    string
		payload any
	)
	if msg.Reaction {
		if msg.ReplyToExternalID == "" {
			return "", fmt.Errorf("whatsapp: reaction without target message")
		}
		path = "/message/" + url.PathEscape(msg.ReplyToExternalID) + "/reaction"
		payload = reactionRequest{Phone: normalized, Emoji: msg.Text}
	} else {
		path = "/send/message"
		payload = sendMessageRequest{Phone: normalized, Message: msg.Text, ReplyMessageID: msg.ReplyToExternalID}
	}

	resp, err := c.post(ctx, path, payload)
	if err != nil {
		return "", err
	}

	c.log.Info("whatsapp sent via gowa", "phone", normalized, "messageId", resp.Results.MessageID)
	return resp.Results.MessageID, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (gatewayResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return gatewayResponse{}, fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return gatewayResponse{}, err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", formatAuthHeader(c.apiKey))
	}
	if c.deviceID != "" {
		req.Header.Set("X-Device-Id", c.deviceID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return gatewayResponse{}, fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return gatewayResponse{}, fmt.Errorf("read whatsapp response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return gatewayResponse{}, fmt.Errorf("whatsapp service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out gatewayResponse
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			c.log.Warn("unparseable whatsapp response", "error", err)
		}
	}
	return out, nil
}

func formatAuthHeader(apiKey string) string {
	if strings.HasPrefix(strings.ToLower(apiKey), "basic ") {
		return apiKey
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(apiKey))
	return "Basic " + encoded
}
