package caller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/VouchlyAI/Pincer-MCP/internal/injector"
)

const geminiGenerateEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent"

// GeminiGenerate calls the Gemini content-generation API using the
// injected API key, and is retried through the standard BaseCaller
// policy.
type GeminiGenerate struct {
	HTTP     *http.Client
	Endpoint string
}

func NewGeminiGenerate(client *http.Client) Caller {
	return Wrap(&GeminiGenerate{HTTP: client, Endpoint: geminiGenerateEndpoint})
}

func (g *GeminiGenerate) Execute(ctx context.Context, req *injector.EnrichedRequest) (Response, error) {
	prompt, _ := req.Arguments["prompt"].(string)
	body := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]any{{"text": prompt}}},
		},
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return Response{}, err
	}
	endpoint := g.Endpoint + "?key=" + req.Credentials.APIKey
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := g.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(httpReq)
	if err != nil {
		return Response{}, err
	}
	defer res.Body.Close()
	respBody, err := io.ReadAll(res.Body)
	if err != nil {
		return Response{}, err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return Response{}, fmt.Errorf("gemini: %s (status %d)", strings.TrimSpace(string(respBody)), res.StatusCode)
	}
	var parsed map[string]any
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Response{}, fmt.Errorf("gemini: parse response: %w", err)
	}
	return Response{Output: parsed}, nil
}
