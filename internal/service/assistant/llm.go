package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/dailysync/keeper/internal/config"
	"github.com/dailysync/keeper/internal/domain"
)

const systemPrompt = "Se possibile estrai intenzioni strutturate per creare task, eventi o spese."

// ChatTurn is one prior message passed to the model as context.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMClient calls a chat-completions API to augment rule-based extraction.
// A new request aborts any in-flight prior one: only the latest user message
// is ever worth answering.
type LLMClient struct {
	cfg  config.AssistantConfig
	http *http.Client

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
}

// NewLLMClient creates a client for cfg. Returns nil when no API key is
// configured, which keeps extraction fully local.
func NewLLMClient(cfg config.AssistantConfig) *LLMClient {
	if cfg.APIKey == "" {
		return nil
	}
	return &LLMClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

type chatRequest struct {
	Model       string     `json:"model"`
	Messages    []ChatTurn `json:"messages"`
	Temperature float64    `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Chat sends input (with optional history) to the model and returns its
// reply. Any previous in-flight Chat call is canceled first.
func (c *LLMClient) Chat(ctx context.Context, input string, history []ChatTurn) (string, error) {
	ctx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.cancel = cancel
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		// Only clear if no newer request replaced us.
		if c.gen == gen {
			c.cancel = nil
		}
		c.mu.Unlock()
	}()

	messages := make([]ChatTurn, 0, len(history)+2)
	messages = append(messages, ChatTurn{Role: "system", Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, ChatTurn{Role: "user", Content: input})

	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.APIURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("chat request status %d: %w", resp.StatusCode, domain.ErrRemoteFailed)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty chat response: %w", domain.ErrRemoteFailed)
	}
	return parsed.Choices[0].Message.Content, nil
}
