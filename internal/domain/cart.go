package domain

// MaxItemQuantity caps the quantity of a single cart line. Additions beyond
// the cap are clamped, explicit quantity updates beyond it are rejected.
const MaxItemQuantity = 99

type CartItem struct {
	ProductID int64   `json:"product_id" bson:"product_id"`
	Quantity  int     `json:"quantity" bson:"quantity"`
	UnitPrice float64 `json:"unit_price" bson:"unit_price"`
}

func (i CartItem) Subtotal() float64 {
	return float64(i.Quantity) * i.UnitPrice
}

// Valid reports whether the item survives the boundary validation gate:
// positive product ref, positive quantity, non-negative price snapshot.
func (i CartItem) Valid() bool {
	return i.ProductID > 0 && i.Quantity > 0 && i.UnitPrice >= 0
}
