package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// WooCommerceConfig holds WooCommerce REST API configuration.
type WooCommerceConfig struct {
	StoreURL       string // e.g., https://shop.example.com
	ConsumerKey    string
	ConsumerSecret string
	Version        string // API version, default "wc/v3"
	Timeout        time.Duration
}

// WooCommerceStore reads and updates orders through the WooCommerce REST API.
type WooCommerceStore struct {
	config     WooCommerceConfig
	httpClient *http.Client
}

// NewWooCommerceStore creates a WooCommerce-backed OrderStore.
func NewWooCommerceStore(cfg WooCommerceConfig) *WooCommerceStore {
	if cfg.Version == "" {
		cfg.Version = "wc/v3"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.StoreURL = strings.TrimRight(cfg.StoreURL, "/")

	return &WooCommerceStore{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// ============================================================================
// Wire types (WooCommerce REST v3)
// ============================================================================

type wooMeta struct {
	ID    int64  `json:"id,omitempty"`
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type wooLineItem struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Total     string `json:"total"`
}

type wooShippingLine struct {
	ID          int64  `json:"id,omitempty"`
	MethodID    string `json:"method_id"`
	MethodTitle string `json:"method_title"`
	Total       string `json:"total"`
}

type wooOrder struct {
	ID            int64             `json:"id"`
	Status        string            `json:"status"`
	Currency      string            `json:"currency"`
	Total         string            `json:"total"`
	PaymentMethod string            `json:"payment_method"`
	Billing       Address           `json:"billing"`
	Shipping      Address           `json:"shipping"`
	LineItems     []wooLineItem     `json:"line_items"`
	ShippingLines []wooShippingLine `json:"shipping_lines"`
	MetaData      []wooMeta         `json:"meta_data"`
}

type wooOrderUpdate struct {
	Status        string            `json:"status,omitempty"`
	ShippingLines []wooShippingLine `json:"shipping_lines,omitempty"`
	MetaData      []wooMeta         `json:"meta_data,omitempty"`
}

type wooProduct struct {
	ID     int64  `json:"id"`
	Weight string `json:"weight"`
}

type wooNote struct {
	Note         string `json:"note"`
	CustomerNote bool   `json:"customer_note"`
	DateCreated  string `json:"date_created,omitempty"`
}

// GetOrder loads an order and the per-unit weight of each product.
func (s *WooCommerceStore) GetOrder(ctx context.Context, id int64) (*Order, error) {
	var wo wooOrder
	if err := s.do(ctx, http.MethodGet, fmt.Sprintf("/orders/%d", id), nil, &wo); err != nil {
		return nil, err
	}

	weights := make(map[int64]float64)
	items := make([]LineItem, 0, len(wo.LineItems))
	for _, li := range wo.LineItems {
		w, seen := weights[li.ProductID]
		if !seen && li.ProductID != 0 {
			w = s.productWeight(ctx, li.ProductID)
			weights[li.ProductID] = w
		}
		items = append(items, LineItem{
			ID:        li.ID,
			ProductID: li.ProductID,
			Name:      li.Name,
			Quantity:  li.Quantity,
			Weight:    w,
			Total:     parseDecimal(li.Total),
		})
	}

	lines := make([]ShippingLine, 0, len(wo.ShippingLines))
	for _, sl := range wo.ShippingLines {
		lines = append(lines, ShippingLine{
			ID:       sl.ID,
			MethodID: sl.MethodID,
			Title:    sl.MethodTitle,
			Total:    parseDecimal(sl.Total),
		})
	}

	meta := make(map[string]string, len(wo.MetaData))
	for _, m := range wo.MetaData {
		if m.Value == nil {
			continue
		}
		meta[m.Key] = fmt.Sprint(m.Value)
	}

	return &Order{
		ID:            wo.ID,
		Status:        Status(wo.Status),
		Currency:      wo.Currency,
		Total:         parseDecimal(wo.Total),
		PaymentMethod: wo.PaymentMethod,
		Billing:       wo.Billing,
		Shipping:      wo.Shipping,
		LineItems:     items,
		ShippingLines: lines,
		Meta:          meta,
	}, nil
}

// productWeight returns the product's weight, or zero when it is missing or
// unreadable; the caller substitutes a default.
func (s *WooCommerceStore) productWeight(ctx context.Context, productID int64) float64 {
	var p wooProduct
	if err := s.do(ctx, http.MethodGet, fmt.Sprintf("/products/%d", productID), nil, &p); err != nil {
		return 0
	}
	return parseDecimal(p.Weight)
}

// SaveOrder pushes status, metadata and shipping lines. WooCommerce
// recalculates totals from the shipping lines it receives.
func (s *WooCommerceStore) SaveOrder(ctx context.Context, order *Order) error {
	update := wooOrderUpdate{Status: string(order.Status)}
	for k, v := range order.Meta {
		update.MetaData = append(update.MetaData, wooMeta{Key: k, Value: v})
	}
	for _, sl := range order.ShippingLines {
		update.ShippingLines = append(update.ShippingLines, wooShippingLine{
			ID:          sl.ID,
			MethodID:    sl.MethodID,
			MethodTitle: sl.Title,
			Total:       strconv.FormatFloat(sl.Total, 'f', 2, 64),
		})
	}
	return s.do(ctx, http.MethodPut, fmt.Sprintf("/orders/%d", order.ID), update, nil)
}

// AddNote adds a private order note.
func (s *WooCommerceStore) AddNote(ctx context.Context, id int64, note string) error {
	return s.do(ctx, http.MethodPost, fmt.Sprintf("/orders/%d/notes", id), wooNote{Note: note}, nil)
}

// Notes returns the order notes, oldest first.
func (s *WooCommerceStore) Notes(ctx context.Context, id int64) ([]Note, error) {
	var raw []wooNote
	if err := s.do(ctx, http.MethodGet, fmt.Sprintf("/orders/%d/notes", id), nil, &raw); err != nil {
		return nil, err
	}
	notes := make([]Note, 0, len(raw))
	// WooCommerce lists newest first.
	for i := len(raw) - 1; i >= 0; i-- {
		created, _ := time.Parse("2006-01-02T15:04:05", raw[i].DateCreated)
		notes = append(notes, Note{Text: raw[i].Note, CreatedAt: created})
	}
	return notes, nil
}

func (s *WooCommerceStore) baseURL() string {
	return fmt.Sprintf("%s/wp-json/%s", s.config.StoreURL, s.config.Version)
}

func (s *WooCommerceStore) do(ctx context.Context, method, path string, body, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL()+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(s.config.ConsumerKey, s.config.ConsumerSecret)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, path)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("WooCommerce API error: %s - %s", resp.Status, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode WooCommerce response: %w", err)
	}
	return nil
}

func parseDecimal(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}

var _ OrderStore = (*WooCommerceStore)(nil)
