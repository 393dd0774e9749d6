package model

// Store is the tenant an order is placed against. Catalog data is owned by
// the admin surfaces; the engine only reads it.
type Store struct {
	ID              string
	Name            string
	DefaultCurrency string
}

type ShippingOption struct {
	ID      string
	StoreID string
	Name    string
	Amount  int64 // minor units
}

type Address struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// OptionSelection is one "Name: Value" pair of a variant, e.g. Size=M.
type OptionSelection struct {
	Name  string
	Value string
}

// VariantDetail is the descriptive view of a sellable unit used to freeze
// order line titles.
type VariantDetail struct {
	ID           string
	ProductID    string
	SKU          string
	ProductTitle string
	Options      []OptionSelection // option position order
}
