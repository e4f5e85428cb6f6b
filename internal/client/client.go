// Package client is the HTTP implementation of the order operations the
// editors consume. It talks to the mealtime API server and translates its
// JSON wire format (decimal strings, snake_case) into the model types.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mealtime/api/internal/model"
)

// Client calls the mealtime API. The zero value is not usable; use New.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client for the given base URL ("http://host:port" without a
// trailing slash). token is the bearer token from /login; it may be empty
// for unauthenticated endpoints.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// --- wire types ---

type orderDTO struct {
	ID           uuid.UUID          `json:"id"`
	RestaurantID uuid.UUID          `json:"restaurant_id"`
	Version      uuid.UUID          `json:"version"`
	State        string             `json:"state"`
	Infos        orderInfosDTO      `json:"infos"`
	Positions    []orderPositionDTO `json:"positions"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

type orderInfosDTO struct {
	Orderer             string `json:"orderer"`
	Fetcher             string `json:"fetcher"`
	MoneyCollectionType string `json:"money_collection_type"`
	MoneyCollector      string `json:"money_collector"`
	OrderClosingTime    string `json:"order_closing_time"`
	OrderText           string `json:"order_text"`
	MaximumMealCount    *int   `json:"maximum_meal_count"`
}

type orderPositionDTO struct {
	ID    uuid.UUID `json:"id"`
	Index int       `json:"index"`
	Name  string    `json:"name"`
	Meal  string    `json:"meal"`
	Price string    `json:"price"`
	Paid  *string   `json:"paid"`
	Tip   *string   `json:"tip"`
}

type positionPatchDTO struct {
	Name  *string `json:"name,omitempty"`
	Meal  *string `json:"meal,omitempty"`
	Price *string `json:"price,omitempty"`
	Paid  *string `json:"paid,omitempty"`
	Tip   *string `json:"tip,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// --- operations ---

// GetOrder fetches one order aggregate.
func (c *Client) GetOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	var dto orderDTO
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/orders/%s", orderID), nil, &dto); err != nil {
		return nil, err
	}
	return dtoToOrder(dto)
}

// SetOrderInfo replaces the order-level metadata.
func (c *Client) SetOrderInfo(ctx context.Context, orderID uuid.UUID, patch model.OrderInfosPatch) error {
	body := orderInfosDTO{
		Orderer:             patch.Orderer,
		Fetcher:             patch.Fetcher,
		MoneyCollectionType: patch.MoneyCollectionType,
		MoneyCollector:      patch.MoneyCollector,
		OrderClosingTime:    patch.OrderClosingTime,
		OrderText:           patch.OrderText,
		MaximumMealCount:    patch.MaximumMealCount,
	}
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/orders/%s/infos", orderID), body, nil)
}

// CreatePosition adds a position to the order.
func (c *Client) CreatePosition(ctx context.Context, orderID uuid.UUID, patch model.OrderPositionPatch) (*model.OrderPosition, error) {
	var dto orderPositionDTO
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/orders/%s/positions", orderID), patchToDTO(patch), &dto); err != nil {
		return nil, err
	}
	pos, err := dtoToPosition(dto)
	if err != nil {
		return nil, err
	}
	return &pos, nil
}

// UpdatePosition patches an existing position.
func (c *Client) UpdatePosition(ctx context.Context, orderID, positionID uuid.UUID, patch model.OrderPositionPatch) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/orders/%s/positions/%s", orderID, positionID), patchToDTO(patch), nil)
}

// DeletePosition removes a position from the order.
func (c *Client) DeletePosition(ctx context.Context, orderID, positionID uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/orders/%s/positions/%s", orderID, positionID), nil, nil)
}

// --- plumbing ---

// do sends one request and decodes the response into out (skipped when out
// is nil). Non-2xx responses become errors carrying the server's message.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var er errorResponse
		if json.NewDecoder(resp.Body).Decode(&er) == nil && er.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, er.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func patchToDTO(patch model.OrderPositionPatch) positionPatchDTO {
	return positionPatchDTO{
		Name:  patch.Name,
		Meal:  patch.Meal,
		Price: decimalString(patch.Price),
		Paid:  decimalString(patch.Paid),
		Tip:   decimalString(patch.Tip),
	}
}

func decimalString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func dtoToOrder(dto orderDTO) (*model.Order, error) {
	o := &model.Order{
		ID:           dto.ID,
		RestaurantID: dto.RestaurantID,
		Version:      dto.Version,
		State:        dto.State,
		Infos: model.OrderInfos{
			Orderer:             dto.Infos.Orderer,
			Fetcher:             dto.Infos.Fetcher,
			MoneyCollectionType: dto.Infos.MoneyCollectionType,
			MoneyCollector:      dto.Infos.MoneyCollector,
			OrderClosingTime:    dto.Infos.OrderClosingTime,
			OrderText:           dto.Infos.OrderText,
			MaximumMealCount:    dto.Infos.MaximumMealCount,
		},
		CreatedAt: dto.CreatedAt,
		UpdatedAt: dto.UpdatedAt,
	}
	o.Positions = make([]model.OrderPosition, len(dto.Positions))
	for i, p := range dto.Positions {
		pos, err := dtoToPosition(p)
		if err != nil {
			return nil, err
		}
		o.Positions[i] = pos
	}
	return o, nil
}

func dtoToPosition(dto orderPositionDTO) (model.OrderPosition, error) {
	price, err := decimal.NewFromString(dto.Price)
	if err != nil {
		return model.OrderPosition{}, fmt.Errorf("position %s: bad price %q: %w", dto.ID, dto.Price, err)
	}
	pos := model.OrderPosition{
		ID:    dto.ID,
		Index: dto.Index,
		Name:  dto.Name,
		Meal:  dto.Meal,
		Price: price,
	}
	if pos.Paid, err = parseOptional(dto.Paid); err != nil {
		return model.OrderPosition{}, fmt.Errorf("position %s: bad paid: %w", dto.ID, err)
	}
	if pos.Tip, err = parseOptional(dto.Tip); err != nil {
		return model.OrderPosition{}, fmt.Errorf("position %s: bad tip: %w", dto.ID, err)
	}
	return pos, nil
}

func parseOptional(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
