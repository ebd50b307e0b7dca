// Package httpadapter is a reference llm.Adapter that POSTs a JSON
// completion request to a configurable HTTP endpoint.
package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/terraphim-labs/roleforge/pkg/llm"
)

// Adapter implements llm.Adapter by POSTing to BaseURL.
type Adapter struct {
	BaseURL string
	Client  *http.Client
}

var _ llm.Adapter = (*Adapter)(nil)

// New returns an Adapter targeting baseURL with a sane default timeout.
func New(baseURL string) *Adapter {
	return &Adapter{BaseURL: baseURL, Client: &http.Client{Timeout: 60 * time.Second}}
}

type requestBody struct {
	Messages []llm.Message `json:"messages"`
	Options  llm.Options   `json:"options"`
}

type responseBody struct {
	Content   string `json:"content"`
	TokensIn  int    `json:"tokens_in"`
	TokensOut int    `json:"tokens_out"`
}

// Complete implements llm.Adapter.
func (a *Adapter) Complete(ctx context.Context, messages []llm.Message, opts llm.Options) (llm.Completion, error) {
	body, err := json.Marshal(requestBody{Messages: messages, Options: opts})
	if err != nil {
		return llm.Completion{}, fmt.Errorf("%w: encode request: %v", llm.ErrAdapter, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL, bytes.NewReader(body))
	if err != nil {
		return llm.Completion{}, fmt.Errorf("%w: build request: %v", llm.ErrAdapter, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.Client.Do(req)
	if err != nil {
		return llm.Completion{}, fmt.Errorf("%w: %v", llm.ErrAdapter, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return llm.Completion{}, fmt.Errorf("%w: unexpected status %d", llm.ErrAdapter, resp.StatusCode)
	}

	var out responseBody
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return llm.Completion{}, fmt.Errorf("%w: decode response: %v", llm.ErrAdapter, err)
	}

	return llm.Completion{Content: out.Content, TokensIn: out.TokensIn, TokensOut: out.TokensOut}, nil
}
