package models

// MenuItem is what a client adds to its cart.
type MenuItem struct {
	ID    int     `json:"id" bson:"id"`
	Name  string  `json:"name" bson:"name"`
	Price float64 `json:"price" bson:"price"`
}

// Menu is the single menu document. Its shape belongs to the admin UI
// (conventionally {"items": [...]}) and is stored verbatim.
type Menu map[string]any

// MenuIDKey is the storage-assigned key stripped from client documents.
const MenuIDKey = "_id"
