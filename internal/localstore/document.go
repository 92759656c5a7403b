package localstore

import (
	"encoding/json"
	"log"

	"github.com/Filichkin/OnlineShop-sub000/internal/domain"
)

// Stored snapshot shape: a single JSON document per collection,
// {"items": [...]}. Absence of the document is an empty collection.

type cartDocument struct {
	Items []domain.CartItem `json:"items"`
}

type favoritesDocument struct {
	Items []domain.FavoriteItem `json:"items"`
}

// decodeCartDocument validates a raw snapshot read back from storage.
// A document that is not an object or whose item list is not an array is
// treated as absent. Individual items failing shape validation are dropped
// so one corrupt entry does not invalidate the whole collection.
func decodeCartDocument(data []byte) []domain.CartItem {
	var doc struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Printf("cart snapshot is not a valid document, treating as empty: %v", err)
		return nil
	}

	items := make([]domain.CartItem, 0, len(doc.Items))
	seen := make(map[int64]struct{}, len(doc.Items))
	for _, raw := range doc.Items {
		var item domain.CartItem
		if err := json.Unmarshal(raw, &item); err != nil {
			log.Printf("dropping malformed cart snapshot item: %v", err)
			continue
		}
		if !item.Valid() {
			log.Printf("dropping invalid cart snapshot item: product_id=%d quantity=%d unit_price=%v",
				item.ProductID, item.Quantity, item.UnitPrice)
			continue
		}
		if _, dup := seen[item.ProductID]; dup {
			log.Printf("dropping duplicate cart snapshot item: product_id=%d", item.ProductID)
			continue
		}
		seen[item.ProductID] = struct{}{}
		items = append(items, item)
	}
	return items
}

func decodeFavoritesDocument(data []byte) []domain.FavoriteItem {
	var doc struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Printf("favorites snapshot is not a valid document, treating as empty: %v", err)
		return nil
	}

	items := make([]domain.FavoriteItem, 0, len(doc.Items))
	seen := make(map[int64]struct{}, len(doc.Items))
	for _, raw := range doc.Items {
		var item domain.FavoriteItem
		if err := json.Unmarshal(raw, &item); err != nil {
			log.Printf("dropping malformed favorites snapshot item: %v", err)
			continue
		}
		if !item.Valid() {
			log.Printf("dropping invalid favorites snapshot item: product_id=%d", item.ProductID)
			continue
		}
		if _, dup := seen[item.ProductID]; dup {
			log.Printf("dropping duplicate favorites snapshot item: product_id=%d", item.ProductID)
			continue
		}
		seen[item.ProductID] = struct{}{}
		items = append(items, item)
	}
	return items
}

func encodeCartDocument(items []domain.CartItem) ([]byte, error) {
	if items == nil {
		items = []domain.CartItem{}
	}
	return json.Marshal(cartDocument{Items: items})
}

func encodeFavoritesDocument(items []domain.FavoriteItem) ([]byte, error) {
	if items == nil {
		items = []domain.FavoriteItem{}
	}
	return json.Marshal(favoritesDocument{Items: items})
}
