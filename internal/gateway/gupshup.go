package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rolesclub/rolesbot/internal/metrics"
)

const defaultBaseURL = "https://api.gupshup.io/wa/api/v1/msg"

// Client sends WhatsApp texts through the Gupshup API.
type Client struct {
	apiKey  string
	source  string
	appName string
	baseURL string
	http    *http.Client
	logger  *logrus.Logger
}

// NewClient creates a Gupshup client. Source is the bot's own number in
// E.164 digit form.
func NewClient(apiKey, source, appName string, logger *logrus.Logger) *Client {
	return &Client{
		apiKey:  apiKey,
		source:  source,
		appName: appName,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

// SetBaseURL overrides the API endpoint. Used by tests.
func (c *Client) SetBaseURL(u string) { c.baseURL = u }

// Send posts one WhatsApp text message.
func (c *Client) Send(ctx context.Context, destination, text string) error {
	form := url.Values{
		"channel":     {"whatsapp"},
		"source":      {c.source},
		"destination": {destination},
		"message":     {text},
		"src.name":    {c.appName},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return &TransportError{Err: err}
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.OutboundMessages.WithLabelValues("error").Inc()
		c.logger.WithError(err).Warn("Gupshup request failed")
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		metrics.OutboundMessages.WithLabelValues("error").Inc()
		c.logger.WithFields(logrus.Fields{
			"status":      resp.StatusCode,
			"destination": destination,
		}).Warnf("Gupshup rejected message: %s", body)
		return &TransportError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("gupshup: %s", strings.TrimSpace(string(body))),
		}
	}

	metrics.OutboundMessages.WithLabelValues("ok").Inc()
	return nil
}
