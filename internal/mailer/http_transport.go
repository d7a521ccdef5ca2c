package mailer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultSendTimeout = 10 * time.Second

type sendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// HTTPTransport delivers messages through a transactional mail provider's
// HTTP API. Each Send is one timeout-bounded attempt; the provider's own
// retry machinery stays disabled.
type HTTPTransport struct {
	client   *resty.Client
	endpoint string
	apiKey   string
	from     string
}

func NewHTTPTransport(endpoint, apiKey, from string) (*HTTPTransport, error) {
	client := resty.New()
	client.SetTimeout(defaultSendTimeout)
	client.SetRetryCount(0)

	return NewHTTPTransportWithClient(endpoint, apiKey, from, client)
}

func NewHTTPTransportWithClient(endpoint, apiKey, from string, client *resty.Client) (*HTTPTransport, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("mail endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid mail endpoint: %w", err)
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("mail sender address is required")
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultSendTimeout)
	}
	client.SetRetryCount(0)

	return &HTTPTransport{
		client:   client,
		endpoint: trimmedEndpoint,
		apiKey:   strings.TrimSpace(apiKey),
		from:     strings.TrimSpace(from),
	}, nil
}

func (t *HTTPTransport) Send(ctx context.Context, msg Message) error {
	if t == nil || t.client == nil {
		return fmt.Errorf("transport is not initialized")
	}
	if strings.TrimSpace(msg.To) == "" {
		return &TransportError{Message: "message recipient is empty"}
	}

	req := t.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(sendRequest{
			From:    t.from,
			To:      msg.To,
			Subject: msg.Subject,
			HTML:    msg.BodyHTML,
		})
	if t.apiKey != "" {
		req.SetAuthToken(t.apiKey)
	}

	response, err := req.Post(t.endpoint)
	if err != nil {
		return &TransportError{
			Message: "mail provider request failed",
			Cause:   err,
		}
	}
	if response == nil {
		return &TransportError{Message: "mail provider returned empty response"}
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return nil
	}

	body := strings.TrimSpace(response.String())
	message := fmt.Sprintf("mail provider returned status %d", statusCode)
	if body != "" {
		message = fmt.Sprintf("%s: %s", message, body)
	}

	return &TransportError{
		StatusCode: statusCode,
		Message:    message,
	}
}
