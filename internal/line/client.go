package line

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const defaultBaseURL = "https://api.line.me"

// Client talks to the LINE Messaging API for replies and pushes.
type Client struct {
	channelToken string
	baseURL      string
	httpClient   *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func WithBaseURL(url string) Option {
	return func(cl *Client) {
		cl.baseURL = url
	}
}

func NewClient(channelToken string, opts ...Option) *Client {
	c := &Client{
		channelToken: channelToken,
		baseURL:      defaultBaseURL,
		httpClient:   http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the channel access token is set.
func (c *Client) Configured() bool {
	return c.channelToken != ""
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type replyRequest struct {
	ReplyToken string        `json:"replyToken"`
	Messages   []textMessage `json:"messages"`
}

type pushRequest struct {
	To       string        `json:"to"`
	Messages []textMessage `json:"messages"`
}

// Reply answers the event that produced replyToken with plain text messages.
func (c *Client) Reply(replyToken string, texts ...string) error {
	return c.post("/v2/bot/message/reply", replyRequest{
		ReplyToken: replyToken,
		Messages:   toTextMessages(texts),
	})
}

// Push sends plain text messages to a user, group, or room ID without a
// preceding event.
func (c *Client) Push(to string, texts ...string) error {
	return c.post("/v2/bot/message/push", pushRequest{
		To:       to,
		Messages: toTextMessages(texts),
	})
}

func toTextMessages(texts []string) []textMessage {
	msgs := make([]textMessage, 0, len(texts))
	for _, t := range texts {
		msgs = append(msgs, textMessage{Type: "text", Text: t})
	}
	return msgs
}

func (c *Client) post(path string, payload any) error {
	if !c.Configured() {
		return fmt.Errorf("line client not configured: missing channel token")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.channelToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("line api %s: status %d: %s", path, resp.StatusCode, msg)
	}
	return nil
}
