package caller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/VouchlyAI/Pincer-MCP/internal/injector"
)

const slackPostMessageEndpoint = "https://slack.com/api/chat.postMessage"

// SlackPostMessage posts a message to Slack using the injected bot
// token as a Bearer credential.
type SlackPostMessage struct {
	HTTP     *http.Client
	Endpoint string
}

func NewSlackPostMessage(client *http.Client) Caller {
	return Wrap(&SlackPostMessage{HTTP: client, Endpoint: slackPostMessageEndpoint})
}

func (s *SlackPostMessage) Execute(ctx context.Context, req *injector.EnrichedRequest) (Response, error) {
	channel, _ := req.Arguments["channel"].(string)
	text, _ := req.Arguments["text"].(string)
	body := map[string]any{"channel": channel, "text": text}
	encoded, err := json.Marshal(body)
	if err != nil {
		return Response{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(encoded))
	if err != nil {
		return Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json; charset=utf-8")
	httpReq.Header.Set("Authorization", "Bearer "+req.Credentials.APIKey)

	client := s.HTTP
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
	var parsed struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Response{}, fmt.Errorf("slack: parse response: %w", err)
	}
	if !parsed.OK {
		return Response{}, fmt.Errorf("slack: %s", parsed.Error)
	}
	var out map[string]any
	_ = json.Unmarshal(respBody, &out)
	return Response{Output: out}, nil
}
