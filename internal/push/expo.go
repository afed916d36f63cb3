package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"event-lifecycle-service/internal/models"
)

// ExpoSender delivers through the Expo push HTTP API.
type ExpoSender struct {
	url         string
	accessToken string
	client      *http.Client
}

// NewExpoSender builds an ExpoSender. A nil client uses http.DefaultClient.
func NewExpoSender(url, accessToken string, client *http.Client) *ExpoSender {
	if client == nil {
		client = http.DefaultClient
	}
	return &ExpoSender{url: url, accessToken: accessToken, client: client}
}

type expoMessage struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
	Sound string            `json:"sound"`
}

type expoResponse struct {
	Data struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Details struct {
			Error string `json:"error"`
		} `json:"details"`
	} `json:"data"`
}

// Send posts a single message. DeviceNotRegistered tickets map to ErrInvalidToken.
func (s *ExpoSender) Send(ctx context.Context, token models.DeviceToken, msg models.PushMessage) error {
	body, err := json.Marshal(expoMessage{
		To:    token.Token,
		Title: msg.Title,
		Body:  msg.Body,
		Data:  msg.Data,
		Sound: "default",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.accessToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("expo request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("expo response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("expo status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}

	var ticket expoResponse
	if err := json.Unmarshal(raw, &ticket); err != nil {
		return fmt.Errorf("decode expo ticket: %w", err)
	}
	if ticket.Data.Status == "error" {
		if ticket.Data.Details.Error == "DeviceNotRegistered" {
			return fmt.Errorf("%w: %s", ErrInvalidToken, ticket.Data.Message)
		}
		return fmt.Errorf("expo ticket error: %s", ticket.Data.Message)
	}
	return nil
}
