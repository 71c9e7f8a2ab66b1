package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/moonfable/tale_go_server/config"
)

// TTSClient 朗读音频合成客户端
type TTSClient struct {
	baseURL      string
	apiKey       string
	model        string
	defaultVoice string
	httpClient   *http.Client
}

func NewTTSClient(cfg *config.TTSProviderConfig) *TTSClient {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 90 // 长文本合成较慢
	}
	return &TTSClient{
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		model:        cfg.Model,
		defaultVoice: cfg.Voice,
		httpClient: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
		},
	}
}

type ttsRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
	Voice string `json:"voice"`
}

// Synthesize 合成朗读音频，返回音频字节
func (c *TTSClient) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	if voice == "" {
		voice = c.defaultVoice
	}

	data, err := json.Marshal(ttsRequest{Model: c.model, Input: text, Voice: voice})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/speech", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("tts provider error: status %d, body: %s", resp.StatusCode, body)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read tts response: %w", err)
	}
	return audio, nil
}
