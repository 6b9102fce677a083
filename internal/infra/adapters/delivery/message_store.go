package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain/ports/adapter"
)

// Ensure implementations satisfy adapter.MessageStore
var (
	_ adapter.MessageStore = (*HTTPMessageStore)(nil)
	_ adapter.MessageStore = (*PassthroughMessageStore)(nil)
)

// HTTPMessageStore reads message content from the sidecar that owns generated
// messages, and reports delivery status back to it.
type HTTPMessageStore struct {
	baseURL string
	client  *http.Client
}

func NewHTTPMessageStore(baseURL string, timeout time.Duration) *HTTPMessageStore {
	return &HTTPMessageStore{baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

func (s *HTTPMessageStore) GetMessage(ctx context.Context, id string) (*adapter.StoredMessage, error) {
	u := s.baseURL + "/v1/messages/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, domain.ErrNotFound
	default:
		return nil, fmt.Errorf("%w: message store returned %d", domain.ErrOperationFailed, resp.StatusCode)
	}

	var out adapter.StoredMessage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: bad message payload: %v", domain.ErrOperationFailed, err)
	}
	return &out, nil
}

func (s *HTTPMessageStore) UpdateMessageStatus(ctx context.Context, id, status string) error {
	body, _ := json.Marshal(map[string]string{"status": status})
	u := s.baseURL + "/v1/messages/" + url.PathEscape(id) + "/status"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("%w: message store returned %d", domain.ErrOperationFailed, resp.StatusCode)
	}
	return nil
}

// PassthroughMessageStore treats the message ref itself as the content. Only
// useful with the dry-run channel, where nothing is actually delivered.
type PassthroughMessageStore struct{}

func NewPassthroughMessageStore() *PassthroughMessageStore { return &PassthroughMessageStore{} }

func (PassthroughMessageStore) GetMessage(_ context.Context, id string) (*adapter.StoredMessage, error) {
	return &adapter.StoredMessage{ID: id, Content: id, LeadRef: id}, nil
}

func (PassthroughMessageStore) UpdateMessageStatus(context.Context, string, string) error {
	return nil
}
