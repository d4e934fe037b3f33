package fez

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tournevent/fezdelivery/pkg/delivery"
	"golang.org/x/time/rate"
)

// HTTPAPIClient is the production implementation of APIClient using HTTP.
type HTTPAPIClient struct {
	baseURL    string
	userID     string
	password   string
	httpClient *http.Client
	limiter    *rate.Limiter
	tokens     TokenProvider
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL           string // e.g. https://apisandbox.fezdelivery.co/
	UserID            string
	Password          string
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 disables throttling
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
// It authenticates through its own TokenSource.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	baseURL := cfg.BaseURL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	c := &HTTPAPIClient{
		baseURL:  baseURL,
		userID:   cfg.UserID,
		password: cfg.Password,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	c.tokens = NewTokenSource(c)
	return c
}

// WithTokenProvider replaces the token provider.
func (c *HTTPAPIClient) WithTokenProvider(tp TokenProvider) *HTTPAPIClient {
	c.tokens = tp
	return c
}

// Authenticate exchanges the configured credentials for a token.
// POST v1/user/authenticate
func (c *HTTPAPIClient) Authenticate(ctx context.Context) (*Token, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "v1/user/authenticate", &AuthRequest{
		UserID:   c.userID,
		Password: c.password,
	}, false)
	if err != nil {
		return nil, delivery.NewError(providerName, delivery.KindAuthFailed, "Authentication failed").
			WithOp("authenticate").WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var result AuthResponse
	decodeErr := json.Unmarshal(body, &result)

	if resp.StatusCode != http.StatusOK || decodeErr != nil || result.AuthDetails.AuthToken == "" {
		msg := result.Description
		if msg == "" {
			msg = "Authentication failed"
		}
		return nil, delivery.NewError(providerName, delivery.KindAuthFailed, msg).
			WithOp("authenticate").WithStatusCode(resp.StatusCode)
	}

	expiresAt, err := parseExpiry(result.AuthDetails.ExpireToken)
	if err != nil {
		return nil, delivery.NewError(providerName, delivery.KindAuthFailed, "Invalid expiration time received").
			WithOp("authenticate").WithCause(err)
	}

	return &Token{
		BearerToken: result.AuthDetails.AuthToken,
		SecretKey:   result.OrgDetails.SecretKey,
		ExpiresAt:   expiresAt,
	}, nil
}

// GetCost prices a domestic parcel. A body whose status is not "Success" is an error.
func (c *HTTPAPIClient) GetCost(ctx context.Context, req *CostRequest) (*CostResponse, error) {
	var result CostResponse
	if err := c.call(ctx, http.MethodPost, "v1/order/cost", req, &result); err != nil {
		return nil, err
	}
	if result.Status != StatusSuccess {
		return nil, &APIError{Status: result.Status, Description: describe(result.Description, "Unable to get delivery cost")}
	}
	return &result, nil
}

// CreateOrders creates domestic orders. POST v1/order
func (c *HTTPAPIClient) CreateOrders(ctx context.Context, orders []OrderRequest) (*CreateOrderResponse, error) {
	return c.createOrders(ctx, "v1/order", orders)
}

// CreateExportOrders creates export orders. POST v1/orders/export
func (c *HTTPAPIClient) CreateExportOrders(ctx context.Context, orders []ExportOrderRequest) (*CreateOrderResponse, error) {
	return c.createOrders(ctx, "v1/orders/export", orders)
}

// createOrders reads the body even on error statuses, since duplicate
// detection may come back as a client error.
func (c *HTTPAPIClient) createOrders(ctx context.Context, path string, payload interface{}) (*CreateOrderResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, path, payload, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read order response: %w", err)
	}

	var result CreateOrderResponse
	decodeErr := json.Unmarshal(body, &result)
	if decodeErr == nil && len(result.DuplicateUniqueIDs) > 0 {
		return &result, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.onUnauthorized(resp.StatusCode)
		return nil, errorFromBody(resp.StatusCode, body)
	}
	if decodeErr != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Description: "malformed order response: " + decodeErr.Error()}
	}
	if result.Status != "" && !strings.EqualFold(result.Status, StatusSuccess) {
		return nil, &APIError{Status: result.Status, Description: describe(result.Description, "Order creation failed")}
	}
	if len(result.OrderNos) == 0 {
		return nil, &APIError{Status: result.Status, Description: describe(result.Description, "No order number returned")}
	}
	return &result, nil
}

// GetOrderDetails reads an order. GET v1/orders/{orderNos}
func (c *HTTPAPIClient) GetOrderDetails(ctx context.Context, orderNos string) (*OrderDetailsResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "v1/orders/"+url.PathEscape(orderNos), nil, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read order details: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.onUnauthorized(resp.StatusCode)
		return nil, errorFromBody(resp.StatusCode, body)
	}

	var result OrderDetailsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Description: "malformed order details: " + err.Error()}
	}
	if result.Status != StatusSuccess {
		return nil, &APIError{Status: result.Status, Description: describe(result.Description, "Unable to fetch order details")}
	}
	_ = json.Unmarshal(body, &result.Raw)
	return &result, nil
}

// ExportLocations lists export destinations. GET v1/orders/export-locations
func (c *HTTPAPIClient) ExportLocations(ctx context.Context) (*ExportLocationsResponse, error) {
	var result ExportLocationsResponse
	if err := c.call(ctx, http.MethodGet, "v1/orders/export-locations", nil, &result); err != nil {
		return nil, err
	}
	if err := checkStatus(result.Status, result.Description, "Unable to fetch export locations"); err != nil {
		return nil, err
	}
	return &result, nil
}

// ExportPrice prices an export parcel. POST v1/orders/export-price
func (c *HTTPAPIClient) ExportPrice(ctx context.Context, req *ExportPriceRequest) (*ExportPriceResponse, error) {
	var result ExportPriceResponse
	if err := c.call(ctx, http.MethodPost, "v1/orders/export-price", req, &result); err != nil {
		return nil, err
	}
	if err := checkStatus(result.Status, result.Description, "Unable to fetch export price"); err != nil {
		return nil, err
	}
	return &result, nil
}

// Lockers lists lockers in a state. GET v1/Lockers/{state}
func (c *HTTPAPIClient) Lockers(ctx context.Context, state string) (*LockersResponse, error) {
	var result LockersResponse
	if err := c.call(ctx, http.MethodGet, "v1/Lockers/"+url.PathEscape(state), nil, &result); err != nil {
		return nil, err
	}
	if err := checkStatus(result.Status, result.Description, "Unable to fetch lockers"); err != nil {
		return nil, err
	}
	return &result, nil
}

// call performs an authenticated request and decodes a 2xx body into out.
func (c *HTTPAPIClient) call(ctx context.Context, method, path string, in, out interface{}) error {
	resp, err := c.doRequest(ctx, method, path, in, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.onUnauthorized(resp.StatusCode)
		return c.parseError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Description: "malformed response: " + err.Error()}
	}
	return nil
}

// doRequest performs an HTTP request with the JSON, secret-key and bearer headers.
func (c *HTTPAPIClient) doRequest(ctx context.Context, method, path string, body interface{}, authed bool) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "fez-delivery-bridge/1.0")

	if authed {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("secret-key", token.SecretKey)
		req.Header.Set("Authorization", "Bearer "+token.BearerToken)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	return c.httpClient.Do(req)
}

// onUnauthorized drops a token the API no longer accepts.
func (c *HTTPAPIClient) onUnauthorized(status int) {
	if status != http.StatusUnauthorized {
		return
	}
	if inv, ok := c.tokens.(interface{ Invalidate() }); ok {
		inv.Invalidate()
	}
}

// parseError extracts error information from an HTTP response.
func (c *HTTPAPIClient) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return errorFromBody(resp.StatusCode, body)
}

func errorFromBody(status int, body []byte) error {
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Description != "" {
		apiErr.StatusCode = status
		return &apiErr
	}

	var simpleErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &simpleErr); err == nil {
		msg := simpleErr.Error
		if msg == "" {
			msg = simpleErr.Message
		}
		if msg != "" {
			return &APIError{StatusCode: status, Description: msg}
		}
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{StatusCode: status, Description: msg}
}

func checkStatus(status, description, fallback string) error {
	if status == "" || strings.EqualFold(status, StatusSuccess) {
		return nil
	}
	return &APIError{Status: status, Description: describe(description, fallback)}
}

func describe(description, fallback string) string {
	if description != "" {
		return description
	}
	return fallback
}

// parseExpiry accepts RFC 3339 and the API's "2006-01-02 15:04:05" (UTC) form.
func parseExpiry(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", s)
}

// Ensure HTTPAPIClient implements APIClient interface
var (
	_ APIClient     = (*HTTPAPIClient)(nil)
	_ Authenticator = (*HTTPAPIClient)(nil)
)
