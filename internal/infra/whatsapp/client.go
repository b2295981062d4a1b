// internal/infra/whatsapp/client.go
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"pastoral_care_worker/internal/domain/notification"
)

// maxErrorBody caps how much of a failed response ends up in the error.
const maxErrorBody = 200

type sendRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// Gateway posts messages to the WhatsApp HTTP gateway. The address is the
// recipient's phone number.
type Gateway struct {
	baseURL string
	client  *http.Client
}

// NewGateway returns a gateway for baseURL. A nil client falls back to
// http.DefaultClient; per-attempt deadlines come from the caller's context.
func NewGateway(baseURL string, client *http.Client) *Gateway {
	if client == nil {
		client = http.DefaultClient
	}
	return &Gateway{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (g *Gateway) Channel() notification.Channel {
	return notification.ChannelWhatsApp
}

func (g *Gateway) Deliver(ctx context.Context, address, text string) error {
	body, err := json.Marshal(sendRequest{Phone: address, Message: text})
	if err != nil {
		return fmt.Errorf("failed to encode WhatsApp request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/send/message", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build WhatsApp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
}
