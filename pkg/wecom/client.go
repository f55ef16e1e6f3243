// Package wecom sends messages to a WeCom (WeChat Work) group robot.
package wecom

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/medflow/hospital-erp/pkg/config"
)

// Sender is implemented by Client.
type Sender interface {
	SendMarkdown(ctx context.Context, content string) error
	SendText(ctx context.Context, content string, mentions ...string) error
}

// Client is a resty-backed group robot client.
type Client struct {
	httpClient *resty.Client
	key        string
}

// NewClient builds a robot client from the webhook configuration.
func NewClient(cfg config.WeComConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(cfg.WebhookURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)

	return &Client{httpClient: httpClient, key: cfg.Key}
}

type textBody struct {
	Content       string   `json:"content"`
	MentionedList []string `json:"mentioned_list,omitempty"`
}

type markdownBody struct {
	Content string `json:"content"`
}

type message struct {
	MsgType  string        `json:"msgtype"`
	Text     *textBody     `json:"text,omitempty"`
	Markdown *markdownBody `json:"markdown,omitempty"`
}

// apiResponse is returned by the robot for every call, including failures.
type apiResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// SendMarkdown posts a markdown message.
func (c *Client) SendMarkdown(ctx context.Context, content string) error {
	return c.send(ctx, message{MsgType: "markdown", Markdown: &markdownBody{Content: content}})
}

// SendText posts a plain text message, optionally mentioning users by id.
func (c *Client) SendText(ctx context.Context, content string, mentions ...string) error {
	return c.send(ctx, message{MsgType: "text", Text: &textBody{Content: content, MentionedList: mentions}})
}

func (c *Client) send(ctx context.Context, msg message) error {
	result := new(apiResponse)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("key", c.key).
		SetBody(msg).
		SetResult(result).
		SetError(result).
		Post("")
	if err != nil {
		return fmt.Errorf("send wecom message: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("wecom api error: status=%d, message=%s", resp.StatusCode(), result.ErrMsg)
	}
	if result.ErrCode != 0 {
		return fmt.Errorf("wecom api error: code=%d, message=%s", result.ErrCode, result.ErrMsg)
	}

	return nil
}
