package asaas

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/motorhub/marketplace-backend/pkg/enums"
	pkgerrors "github.com/motorhub/marketplace-backend/pkg/errors"
	"github.com/motorhub/marketplace-backend/pkg/logger"
)

const (
	dueDateLayout               = "2006-01-02"
	defaultTimeout              = 15 * time.Second
	responseBodyReadLimit int64 = 64 * 1024
)

var (
	// ErrChargeRejected means the provider did not create a charge. Callers
	// treat it as a per-item gateway failure and retry on the next run.
	ErrChargeRejected = errors.New("asaas: charge rejected")
	// ErrPaymentNotFound is returned by GetPayment for unknown ids.
	ErrPaymentNotFound = errors.New("asaas: payment not found")

	errBaseURLRequired = errors.New("asaas api url is required")
	errAPIKeyRequired  = errors.New("asaas api key is required")
)

// Client issues payment calls to the Asaas REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	pixKey     string
	now        func() time.Time
	loc        *time.Location
	logg       *logger.Logger
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithPixKey sets the payout key attached to every PIX charge.
func WithPixKey(key string) Option {
	return func(c *Client) {
		c.pixKey = strings.TrimSpace(key)
	}
}

// WithClock replaces time.Now when computing due dates.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLocation sets the calendar used for the due date.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) {
		if loc != nil {
			c.loc = loc
		}
	}
}

func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		c.logg = logg
	}
}

// NewClient builds the Asaas client for the given API root and access token.
func NewClient(baseURL, apiKey string, opts ...Option) (*Client, error) {
	trimmedURL := strings.TrimSpace(baseURL)
	if trimmedURL == "" {
		return nil, errBaseURLRequired
	}
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}

	client := &Client{
		apiKey:     trimmedKey,
		baseURL:    trimmedURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		now:        time.Now,
		loc:        time.UTC,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// CreateCharge creates a PIX payment due today. Non-2xx answers and bodies
// without an id are logged verbatim and reported as ErrChargeRejected.
func (c *Client) CreateCharge(ctx context.Context, req ChargeRequest) (*Payment, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "asaas client not configured")
	}
	if strings.TrimSpace(req.Customer) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "billing customer is required")
	}
	if !req.Value.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "charge value must be positive")
	}

	body := createPaymentBody{
		Customer:          req.Customer,
		BillingType:       enums.BillingTypePix,
		Value:             json.Number(req.Value.StringFixed(2)),
		DueDate:           c.Today(),
		Description:       req.Description,
		ExternalReference: req.ExternalReference,
		PixAddressKey:     c.pixKey,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal charge request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL("payments"), bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "build charge request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "execute charge request")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logRejected(ctx, req.ExternalReference, resp.StatusCode, raw)
		return nil, fmt.Errorf("%w: status %d", ErrChargeRejected, resp.StatusCode)
	}

	var payment Payment
	if err := json.Unmarshal(raw, &payment); err != nil || payment.ID == "" {
		c.logRejected(ctx, req.ExternalReference, resp.StatusCode, raw)
		return nil, fmt.Errorf("%w: response carried no payment id", ErrChargeRejected)
	}
	return &payment, nil
}

// FindByExternalReference returns the first live payment carrying ref, or nil.
func (c *Client) FindByExternalReference(ctx context.Context, ref string) (*Payment, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "asaas client not configured")
	}
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "external reference is required")
	}

	query := url.Values{}
	query.Set("externalReference", trimmed)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL("payments")+"?"+query.Encode(), nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "build payment lookup request")
	}

	resp, err := c.do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "execute payment lookup request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "payment lookup failed")
	}

	var list paymentList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "decode payment lookup response")
	}
	for i := range list.Data {
		if list.Data[i].Deleted {
			continue
		}
		if list.Data[i].ExternalReference != "" && list.Data[i].ExternalReference != trimmed {
			continue
		}
		return &list.Data[i], nil
	}
	return nil, nil
}

// GetPayment fetches a single payment by provider id.
func (c *Client) GetPayment(ctx context.Context, id string) (*Payment, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "asaas client not configured")
	}
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL("payments", url.PathEscape(trimmed)), nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "build payment request")
	}

	resp, err := c.do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "execute payment request")
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrPaymentNotFound
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "payment request failed")
	}

	var payment Payment
	if err := json.NewDecoder(resp.Body).Decode(&payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "decode payment response")
	}
	return &payment, nil
}

// Today is the due date the client stamps on new charges.
func (c *Client) Today() string {
	return c.now().In(c.loc).Format(dueDateLayout)
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("access_token", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "motorhub-backend")
	return c.httpClient.Do(req)
}

func (c *Client) logRejected(ctx context.Context, ref string, status int, raw []byte) {
	if c.logg == nil {
		return
	}
	fields := map[string]any{
		"external_reference": ref,
		"status_code":        status,
		"response_body":      string(raw),
	}
	var parsed errorBody
	if err := json.Unmarshal(raw, &parsed); err == nil && len(parsed.Errors) > 0 {
		fields["error_code"] = parsed.Errors[0].Code
	}
	c.logg.Warn(c.logg.WithFields(ctx, fields), "asaas.charge.rejected")
}

func (c *Client) buildURL(parts ...string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	return fmt.Sprintf("%s/%s", trimmed, strings.Join(parts, "/"))
}
