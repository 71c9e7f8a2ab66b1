package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/moonfable/tale_go_server/config"
)

var (
	// ErrNotConfigured 缺少 API Key 等必要配置
	ErrNotConfigured = errors.New("provider not configured")
)

// StoryParams 故事生成参数
type StoryParams struct {
	ChildName       string
	ChildAge        int
	ChildGender     string
	ChildInterests  []string
	Topic           string
	Character       string
	DurationMinutes int
}

// StoryResult 生成结果
type StoryResult struct {
	Title string
	Text  string
}

// StoryClient 故事文本生成客户端（chat-completion 风格接口）
type StoryClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewStoryClient(cfg *config.StoryProviderConfig) *StoryClient {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 60
	}
	return &StoryClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate 生成故事文本。第一行作为标题，其余为正文
func (c *StoryClient) Generate(ctx context.Context, params *StoryParams) (*StoryResult, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: "你是一位儿童故事作家，为学龄前儿童创作温暖的睡前故事。第一行输出标题，之后输出正文。"},
			{Role: "user", Content: buildStoryPrompt(params)},
		},
	}

	var resp chatResponse
	if err := c.post(ctx, "/chat/completions", &reqBody, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("story provider returned no choices")
	}

	title, text := splitTitle(resp.Choices[0].Message.Content)
	return &StoryResult{Title: title, Text: text}, nil
}

func buildStoryPrompt(p *StoryParams) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "请为 %d 岁的孩子 %s 写一个关于「%s」的故事。", p.ChildAge, p.ChildName, p.Topic)
	if p.Character != "" {
		fmt.Fprintf(&sb, "主角是%s。", p.Character)
	}
	if len(p.ChildInterests) > 0 {
		fmt.Fprintf(&sb, "孩子喜欢：%s。", strings.Join(p.ChildInterests, "、"))
	}
	if p.DurationMinutes > 0 {
		fmt.Fprintf(&sb, "故事朗读时长约 %d 分钟。", p.DurationMinutes)
	}
	return sb.String()
}

func splitTitle(content string) (string, string) {
	content = strings.TrimSpace(content)
	idx := strings.Index(content, "\n")
	if idx < 0 {
		return content, content
	}
	title := strings.TrimSpace(strings.Trim(content[:idx], "#* "))
	text := strings.TrimSpace(content[idx+1:])
	return title, text
}

func (c *StoryClient) post(ctx context.Context, path string, reqBody, respBody interface{}) error {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("story provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("story provider error: status %d, body: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("failed to decode story provider response: %w", err)
	}
	return nil
}
