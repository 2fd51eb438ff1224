package caller

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/VouchlyAI/Pincer-MCP/internal/injector"
)

// GPGSign signs arguments["payload"] with the injected signing key
// material by shelling out to gpg. Purely local, so its retry policy
// overrides MaxRetries to 1 at registration time.
type GPGSign struct{}

func NewGPGSign() Caller {
	return &BaseCaller{Inner: &GPGSign{}, MaxRetries: 1, RetryDelay: defaultRetryDelay}
}

func (GPGSign) Execute(ctx context.Context, req *injector.EnrichedRequest) (Response, error) {
	payload, _ := req.Arguments["payload"].(string)
	if payload == "" {
		return Response{}, fmt.Errorf("gpg: missing payload argument")
	}

	keyDir, err := os.MkdirTemp("", "pincer-gpg-*")
	if err != nil {
		return Response{}, err
	}
	defer os.RemoveAll(keyDir)

	importCmd := exec.CommandContext(ctx, "gpg", "--homedir", keyDir, "--batch", "--import") // #nosec G204
	importCmd.Stdin = bytes.NewBufferString(req.Credentials.APIKey)
	if out, err := importCmd.CombinedOutput(); err != nil {
		return Response{}, fmt.Errorf("gpg: import signing key: %w: %s", err, out)
	}

	signCmd := exec.CommandContext(ctx, "gpg", "--homedir", keyDir, "--batch", "--yes", "--detach-sign", "--armor") // #nosec G204
	signCmd.Stdin = bytes.NewBufferString(payload)
	var stdout, stderr bytes.Buffer
	signCmd.Stdout = &stdout
	signCmd.Stderr = &stderr
	if err := signCmd.Run(); err != nil {
		return Response{}, fmt.Errorf("gpg: sign: %w: %s", err, stderr.String())
	}
	return Response{Output: map[string]any{"signature": stdout.String()}}, nil
}
