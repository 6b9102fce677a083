package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain/ports/adapter"
)

// Ensure AgentChannel implements adapter.DeliveryChannel
var _ adapter.DeliveryChannel = (*AgentChannel)(nil)

// AgentChannel hands sends to a browser-automation sidecar over HTTP. The
// sidecar owns the session and performs the actual profile interaction.
type AgentChannel struct {
	baseURL string
	client  *http.Client
	log     *zerolog.Logger
}

func NewAgentChannel(baseURL string, timeout time.Duration, logger *zerolog.Logger) *AgentChannel {
	l := logger.With().Str("component", "delivery_agent").Logger()
	return &AgentChannel{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		log:     &l,
	}
}

type agentSendRequest struct {
	ProfileRef string `json:"profile_ref"`
	Content    string `json:"content"`
}

type agentSendResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (c *AgentChannel) Send(ctx context.Context, msg adapter.OutreachMessage) error {
	body, err := json.Marshal(agentSendRequest{ProfileRef: msg.LeadProfileRef, Content: msg.Content})
	if err != nil {
		return fmt.Errorf("failed to encode agent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build agent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.log.Warn().Int("status", resp.StatusCode).Bytes("body", raw).Msg("agent rejected send")
		return fmt.Errorf("%w: agent returned %d", domain.ErrDeliveryFailed, resp.StatusCode)
	}

	var out agentSendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("%w: bad agent response: %v", domain.ErrDeliveryFailed, err)
	}
	if !out.OK {
		return fmt.Errorf("%w: %s", domain.ErrDeliveryFailed, out.Error)
	}
	return nil
}
