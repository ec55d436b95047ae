// Package intelligent 调用生成式 AI 为提问产生回答。
package intelligent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Generator 为提问生成一条回答。previousAnswer 非空时要求给出不同的回答。
type Generator interface {
	Generate(ctx context.Context, question, previousAnswer string) (string, error)
}

// GeminiClient 通过 Gemini generateContent REST 接口生成回答。
type GeminiClient struct {
	endpoint string
	model    string
	apiKey   string
	httpc    *http.Client
}

// NewGeminiClient 创建 Gemini 客户端。endpoint 为空时使用官方地址。
func NewGeminiClient(endpoint, model, apiKey string) *GeminiClient {
	if endpoint == "" {
		endpoint = "https://generativelanguage.googleapis.com"
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		apiKey:   apiKey,
		httpc:    http.DefaultClient,
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Generate 构造提示词并调用模型，返回去除代码围栏后的文本。
// 不做重试，也不在请求上下文之外附加超时。
func (g *GeminiClient) Generate(ctx context.Context, question, previousAnswer string) (string, error) {
	prompt := buildPrompt(question, previousAnswer)

	payload, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.endpoint, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generate content: status %d", resp.StatusCode)
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("generate content: empty response")
	}

	return StripFences(parsed.Candidates[0].Content.Parts[0].Text), nil
}

// StripFences 去掉模型偶尔包裹在回答外面的 ```html / ``` 围栏。
func StripFences(s string) string {
	s = strings.ReplaceAll(s, "```html", "")
	s = strings.ReplaceAll(s, "```", "")
	return s
}

func buildPrompt(question, previousAnswer string) string {
	var b strings.Builder
	b.WriteString("You are meant to help people find answers to programming related questions.\n\n")
	b.WriteString("If the question below is not programming related and/or isn't really a question at all, ")
	b.WriteString("please let the user know that you could not find an answer to the question nicely with 200 character reason. ")
	b.WriteString("Normal answers have a maximum of 750 characters.\n\n")

	if previousAnswer != "" {
		fmt.Fprintf(&b, "The question has already been answered. Please provide a new answer, (Previous Answer: %s).\n\n", previousAnswer)
	}

	b.WriteString("RULES ABOUT ANSWER: user interface is rendered in html, please return your answer as HTML ")
	b.WriteString("(the UI will render what you return in dangerouslySetInnerHTML. if you ever have to add code samples, use escape characters). ")
	b.WriteString("To render <em> in a code sample you must return &lt;em&gt; (obviously use tags like <br> here to structure the code) ")
	b.WriteString("but if you simply want to emphasize text go ahead and use <em>, this applies for everything.\n\n")
	b.WriteString("Please do not use ```html ``` to surround the answer (html won't format that). Never use markdown.\n\n")
	b.WriteString("Please provide an answer to the following question:\n\n")
	fmt.Fprintf(&b, "\"\"\"\n%s\n\"\"\"\n", question)
	return b.String()
}
