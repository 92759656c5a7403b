package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/Filichkin/OnlineShop-sub000/internal/domain"
)

// HTTPClient talks to the storefront REST API. Every request carries the
// current credential from the token source as a bearer token, and all
// requests share a circuit breaker: after repeated transport or 5xx
// failures the breaker opens and calls fail fast until the API recovers.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

func NewHTTPClient(baseURL string, tokens TokenSource) *HTTPClient {
	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "storefront-api",
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// Definitive API answers are not outages; only transport
			// failures and unexpected statuses count against the breaker.
			return err == nil ||
				errors.Is(err, ErrUnauthorized) ||
				errors.Is(err, ErrNotFound) ||
				errors.Is(err, ErrConflict)
		},
	})

	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		tokens:  tokens,
		breaker: breaker,
	}
}

type cartItemDTO struct {
	ProductID       int64   `json:"product_id"`
	Quantity        int     `json:"quantity"`
	PriceAtAddition float64 `json:"price_at_addition"`
}

type cartResponseDTO struct {
	Items []cartItemDTO `json:"items"`
}

type productDTO struct {
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	MainImage  string  `json:"main_image"`
	PartNumber string  `json:"part_number"`
}

type favoriteItemDTO struct {
	ProductID int64      `json:"product_id"`
	Product   productDTO `json:"product"`
}

type favoritesResponseDTO struct {
	Items []favoriteItemDTO `json:"items"`
}

type addItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type updateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

func (c *HTTPClient) GetCart(ctx context.Context) ([]domain.CartItem, error) {
	var resp cartResponseDTO
	if err := c.doJSON(ctx, http.MethodGet, "/cart/", nil, &resp); err != nil {
		return nil, err
	}

	items := make([]domain.CartItem, 0, len(resp.Items))
	for _, dto := range resp.Items {
		item := cartItemFromDTO(dto)
		if !item.Valid() {
			log.Printf("dropping invalid cart item from API response: product_id=%d", dto.ProductID)
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (c *HTTPClient) AddItem(ctx context.Context, productID int64, quantity int) (*domain.CartItem, error) {
	req := addItemRequestDTO{ProductID: productID, Quantity: quantity}
	var resp cartItemDTO
	if err := c.doJSON(ctx, http.MethodPost, "/cart/items", req, &resp); err != nil {
		return nil, err
	}

	item := cartItemFromDTO(resp)
	if !item.Valid() {
		return nil, fmt.Errorf("invalid cart item in API response: product_id=%d", resp.ProductID)
	}
	return &item, nil
}

func (c *HTTPClient) UpdateQuantity(ctx context.Context, productID int64, quantity int) (*domain.CartItem, error) {
	req := updateQuantityRequestDTO{Quantity: quantity}
	var resp cartItemDTO
	path := fmt.Sprintf("/cart/items/%d", productID)
	if err := c.doJSON(ctx, http.MethodPatch, path, req, &resp); err != nil {
		return nil, err
	}

	item := cartItemFromDTO(resp)
	if !item.Valid() {
		return nil, fmt.Errorf("invalid cart item in API response: product_id=%d", resp.ProductID)
	}
	return &item, nil
}

func (c *HTTPClient) RemoveItem(ctx context.Context, productID int64) error {
	path := fmt.Sprintf("/cart/items/%d", productID)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

func (c *HTTPClient) ClearCart(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodDelete, "/cart/", nil, nil)
}

func (c *HTTPClient) GetFavorites(ctx context.Context) ([]domain.FavoriteItem, error) {
	var resp favoritesResponseDTO
	if err := c.doJSON(ctx, http.MethodGet, "/favorites/", nil, &resp); err != nil {
		return nil, err
	}

	items := make([]domain.FavoriteItem, 0, len(resp.Items))
	for _, dto := range resp.Items {
		item := favoriteItemFromDTO(dto)
		if !item.Valid() {
			log.Printf("dropping invalid favorite item from API response: product_id=%d", dto.ProductID)
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (c *HTTPClient) AddFavorite(ctx context.Context, productID int64) (*domain.FavoriteItem, error) {
	var resp favoriteItemDTO
	path := fmt.Sprintf("/favorites/%d", productID)
	if err := c.doJSON(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return nil, err
	}

	item := favoriteItemFromDTO(resp)
	if !item.Valid() {
		return nil, fmt.Errorf("invalid favorite item in API response: product_id=%d", resp.ProductID)
	}
	return &item, nil
}

func (c *HTTPClient) RemoveFavorite(ctx context.Context, productID int64) error {
	path := fmt.Sprintf("/favorites/%d", productID)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if err := statusToError(resp.StatusCode); err != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func statusToError(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrUnauthorized
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusConflict:
		return ErrConflict
	default:
		return fmt.Errorf("unexpected status %d", status)
	}
}

func cartItemFromDTO(dto cartItemDTO) domain.CartItem {
	return domain.CartItem{
		ProductID: dto.ProductID,
		Quantity:  dto.Quantity,
		UnitPrice: dto.PriceAtAddition,
	}
}

func favoriteItemFromDTO(dto favoriteItemDTO) domain.FavoriteItem {
	return domain.FavoriteItem{
		ProductID: dto.ProductID,
		Product: domain.ProductSnapshot{
			Name:       dto.Product.Name,
			Price:      dto.Product.Price,
			MainImage:  dto.Product.MainImage,
			PartNumber: dto.Product.PartNumber,
		},
	}
}
