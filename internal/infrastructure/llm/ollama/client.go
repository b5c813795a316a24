package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/cottonlog/internal/core/domain"
	"github.com/kirillkom/cottonlog/internal/infrastructure/resilience"
)

// Fallback text when the model returns an empty response.
const emptyAssessment = "Analysis complete."

type Client struct {
	baseURL    string
	genModel   string
	httpClient *http.Client
	executor   *resilience.Executor
}

// New builds a client. executor may be nil to call Ollama without retries.
func New(baseURL, genModel string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

// Assessor produces a short classer-style quality assessment of a bale.
type Assessor struct {
	client *Client
}

func NewAssessor(client *Client) *Assessor {
	return &Assessor{client: client}
}

func (a *Assessor) Assess(ctx context.Context, input domain.AssessmentInput) (string, error) {
	prompt, err := buildAssessmentPrompt(input)
	if err != nil {
		return "", err
	}
	text, err := a.client.generateText(ctx, prompt)
	if err != nil {
		return "", err
	}
	if text == "" {
		return emptyAssessment, nil
	}
	return text, nil
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type generateResponse struct {
	Response string `json:"response"`
}

func (c *Client) generateText(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:   c.genModel,
		Prompt:  prompt,
		Options: generateOptions{Temperature: 0.2, NumPredict: 256},
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	var out generateResponse
	call := func(ctx context.Context) error {
		resp, callErr := c.generate(ctx, body)
		if callErr != nil {
			return callErr
		}
		out = resp
		return nil
	}
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ollama.generate", call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", resilience.AsTemporary("ollama generate", err, classifyOllamaError)
	}
	return strings.TrimSpace(out.Response), nil
}

func (c *Client) generate(ctx context.Context, body []byte) (generateResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return generateResponse{}, fmt.Errorf("create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return generateResponse{}, fmt.Errorf("ollama generate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return generateResponse{}, &HTTPStatusError{
			Operation:  "generate",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(msg),
		}
	}
	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return generateResponse{}, fmt.Errorf("decode generate response: %w", err)
	}
	return out, nil
}
