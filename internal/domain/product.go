package domain

import (
	"fmt"
	"unicode/utf8"
)

// Display limits for product cards.
const (
	// MaxCardColors is the number of color tags rendered per card.
	MaxCardColors = 4
	// MaxCardDescriptionRunes bounds the description shown on a card.
	MaxCardDescriptionRunes = 140
)

// FallbackImageURL is shown for products without an image.
const FallbackImageURL = "https://images.unsplash.com/photo-1541099649105-f69ad21f3246?q=80&w=1600&auto=format&fit=crop"

// Product is a catalog item as served by the backend. It is never mutated
// after decoding.
type Product struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	ImageURL    string   `json:"image_url,omitempty"`
	Colors      []string `json:"colors,omitempty"`
}

// ProductCard is the render-ready form of a Product.
type ProductCard struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       string   `json:"price"`
	ImageURL    string   `json:"image_url"`
	Colors      []string `json:"colors"`
}

// FormatPrice renders a price with a currency symbol and two fraction digits.
func FormatPrice(price float64) string {
	return fmt.Sprintf("$%.2f", price)
}

// Card builds the card shown for p.
func (p Product) Card() ProductCard {
	img := p.ImageURL
	if img == "" {
		img = FallbackImageURL
	}

	n := len(p.Colors)
	if n > MaxCardColors {
		n = MaxCardColors
	}
	colors := make([]string, n)
	copy(colors, p.Colors[:n])

	return ProductCard{
		Name:        p.Name,
		Description: truncate(p.Description, MaxCardDescriptionRunes),
		Price:       FormatPrice(p.Price),
		ImageURL:    img,
		Colors:      colors,
	}
}

// Cards builds one card per product, preserving order.
func Cards(products []Product) []ProductCard {
	cards := make([]ProductCard, len(products))
	for i, p := range products {
		cards[i] = p.Card()
	}
	return cards
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}
