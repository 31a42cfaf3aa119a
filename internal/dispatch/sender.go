package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/leadops-io/leadops/internal/domain"
	"github.com/leadops-io/leadops/internal/signing"
)

// maxResponseBody caps how much of the destination's response is stored on
// the attempt record.
const maxResponseBody = 1024

// SendResult captures the outcome of one outbound HTTP call. A transport
// failure leaves StatusCode nil and fills Error.
type SendResult struct {
	StatusCode *int
	Body       string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Sender performs signed HTTP webhook calls to destinations.
type Sender struct {
	client *http.Client
	now    func() time.Time
}

func NewSender(timeout time.Duration) *Sender {
	return NewSenderWithClient(&http.Client{Timeout: timeout})
}

func NewSenderWithClient(client *http.Client) *Sender {
	return &Sender{
		client: client,
		now:    time.Now,
	}
}

// Send issues one request using the destination's configured method and
// custom headers, plus signature and timestamp headers.
func (s *Sender) Send(ctx context.Context, dest *domain.Destination, deliveryID uuid.UUID, eventType string, body []byte) SendResult {
	started := s.now()

	req, err := http.NewRequestWithContext(ctx, httpMethod(dest.Method), dest.URL, bytes.NewReader(body))
	if err != nil {
		return SendResult{
			Error:      fmt.Sprintf("create request: %v", err),
			StartedAt:  started,
			FinishedAt: s.now(),
		}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Leadops-Webhook/1.0")
	req.Header.Set("X-Leadops-Event", eventType)
	req.Header.Set("X-Leadops-Delivery-ID", deliveryID.String())

	ts := started.Unix()
	req.Header.Set("X-Leadops-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Leadops-Signature", signing.WebhookSignature(dest.SigningSecretHash, ts, body))

	// Custom headers last: a destination may override the defaults but
	// never the signature pair.
	for k, v := range dest.Headers {
		if strings.EqualFold(k, "X-Leadops-Signature") || strings.EqualFold(k, "X-Leadops-Timestamp") {
			continue
		}
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return SendResult{
			Error:      err.Error(),
			StartedAt:  started,
			FinishedAt: s.now(),
		}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	status := resp.StatusCode

	return SendResult{
		StatusCode: &status,
		Body:       string(respBody),
		StartedAt:  started,
		FinishedAt: s.now(),
	}
}

// Succeeded reports whether the call got a 2xx response.
func (r SendResult) Succeeded() bool {
	return r.Error == "" && r.StatusCode != nil && *r.StatusCode >= 200 && *r.StatusCode < 300
}

// Describe returns the failure description recorded as last_error.
func (r SendResult) Describe() string {
	if r.Error != "" {
		return r.Error
	}
	if r.StatusCode != nil {
		return fmt.Sprintf("HTTP %d", *r.StatusCode)
	}
	return "no response"
}

func httpMethod(method string) string {
	switch strings.ToLower(method) {
	case domain.MethodPut:
		return http.MethodPut
	case domain.MethodPatch:
		return http.MethodPatch
	default:
		return http.MethodPost
	}
}
