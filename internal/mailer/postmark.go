package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	postmarkURL    = "https://api.postmarkapp.com/email"
	postmarkStream = "outbound"
)

// Message is one outgoing HTML email.
type Message struct {
	From     string
	To       string
	Subject  string
	HTMLBody string
}

// Sender delivers an email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type postmarkRequest struct {
	From          string `json:"From"`
	To            string `json:"To"`
	Subject       string `json:"Subject"`
	HtmlBody      string `json:"HtmlBody"`
	MessageStream string `json:"MessageStream"`
}

type postmarkError struct {
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
}

// PostmarkClient sends through the Postmark single-email API.
type PostmarkClient struct {
	url    string
	token  string
	client *http.Client
}

// NewPostmarkClient uses the public API when url is empty.
func NewPostmarkClient(url, token string, client *http.Client) *PostmarkClient {
	if url == "" {
		url = postmarkURL
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &PostmarkClient{url: url, token: token, client: client}
}

func (c *PostmarkClient) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(postmarkRequest{
		From:          msg.From,
		To:            msg.To,
		Subject:       msg.Subject,
		HtmlBody:      msg.HTMLBody,
		MessageStream: postmarkStream,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build email request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var pe postmarkError
		if json.NewDecoder(resp.Body).Decode(&pe) != nil || pe.Message == "" {
			pe.Message = "Unknown error"
		}
		return fmt.Errorf("failed to send email: %s", pe.Message)
	}
	return nil
}
