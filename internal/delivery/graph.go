// internal/delivery/graph.go
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultGraphBaseURL = "https://graph.microsoft.com/v1.0"
	graphScope          = "https://graph.microsoft.com/.default"
)

type GraphConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	// Sender is the mailbox the message is sent from.
	Sender string

	// BaseURL and TokenURL override the Microsoft endpoints.
	BaseURL  string
	TokenURL string
}

// Graph sends mail through the Microsoft Graph sendMail API using an
// application token.
type Graph struct {
	client  *http.Client
	baseURL string
	sender  string
}

func NewGraph(cfg GraphConfig) (*Graph, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.Sender == "" {
		return nil, fmt.Errorf("graph client id, secret and sender are required")
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		if cfg.TenantID == "" {
			return nil, fmt.Errorf("graph tenant id is required")
		}
		tokenURL = "https://login.microsoftonline.com/" + url.PathEscape(cfg.TenantID) + "/oauth2/v2.0/token"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGraphBaseURL
	}
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{graphScope},
	}
	return &Graph{
		client:  cc.Client(context.Background()),
		baseURL: baseURL,
		sender:  cfg.Sender,
	}, nil
}

func (g *Graph) Name() string { return "graph" }

type graphAddress struct {
	EmailAddress struct {
		Address string `json:"address"`
	} `json:"emailAddress"`
}

type graphMail struct {
	Message struct {
		Subject string `json:"subject"`
		Body    struct {
			ContentType string `json:"contentType"`
			Content     string `json:"content"`
		} `json:"body"`
		ToRecipients []graphAddress `json:"toRecipients"`
	} `json:"message"`
	SaveToSentItems bool `json:"saveToSentItems"`
}

func (g *Graph) Send(ctx context.Context, msg Message) (string, error) {
	var body graphMail
	body.Message.Subject = msg.Subject
	body.Message.Body.ContentType = "HTML"
	body.Message.Body.Content = msg.HTML
	var to graphAddress
	to.EmailAddress.Address = msg.To
	body.Message.ToRecipients = []graphAddress{to}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode graph mail: %w", err)
	}
	endpoint := g.baseURL + "/users/" + url.PathEscape(g.sender) + "/sendMail"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("graph send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("graph send: status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}
	if id := resp.Header.Get("request-id"); id != "" {
		return id, nil
	}
	return uuid.NewString(), nil
}
