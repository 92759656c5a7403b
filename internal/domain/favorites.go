package domain

// ProductSnapshot holds the denormalized display fields captured when a
// product is added to favorites. It is never re-derived from the catalog.
type ProductSnapshot struct {
	Name       string  `json:"name" bson:"name"`
	Price      float64 `json:"price" bson:"price"`
	MainImage  string  `json:"main_image,omitempty" bson:"main_image,omitempty"`
	PartNumber string  `json:"part_number,omitempty" bson:"part_number,omitempty"`
}

type FavoriteItem struct {
	ProductID int64           `json:"product_id" bson:"product_id"`
	Product   ProductSnapshot `json:"product" bson:"product"`
}

func (i FavoriteItem) Valid() bool {
	return i.ProductID > 0
}
