package domain

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		name  string
		price float64
		want  string
	}{
		{name: "one decimal", price: 19.5, want: "$19.50"},
		{name: "integer", price: 40, want: "$40.00"},
		{name: "rounds up", price: 12.346, want: "$12.35"},
		{name: "many decimals", price: 9.999, want: "$10.00"},
		{name: "zero", price: 0, want: "$0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatPrice(tt.price))
		})
	}
}

func TestProductCard_FallbackImage(t *testing.T) {
	card := Product{Name: "Plain", Price: 10}.Card()
	assert.Equal(t, FallbackImageURL, card.ImageURL)

	card = Product{Name: "Pic", ImageURL: "https://img.example.com/h.jpg"}.Card()
	assert.Equal(t, "https://img.example.com/h.jpg", card.ImageURL)
}

func TestProductCard_Colors(t *testing.T) {
	tests := []struct {
		name   string
		colors []string
		want   []string
	}{
		{name: "absent", colors: nil, want: []string{}},
		{name: "empty", colors: []string{}, want: []string{}},
		{name: "two", colors: []string{"red", "blue"}, want: []string{"red", "blue"}},
		{name: "exactly four", colors: []string{"a", "b", "c", "d"}, want: []string{"a", "b", "c", "d"}},
		{name: "six capped at four", colors: []string{"a", "b", "c", "d", "e", "f"}, want: []string{"a", "b", "c", "d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := Product{Name: "H", Colors: tt.colors}.Card()
			assert.Equal(t, tt.want, card.Colors)
		})
	}
}

func TestProductCard_DoesNotAliasColors(t *testing.T) {
	p := Product{Name: "H", Colors: []string{"red", "blue"}}
	card := p.Card()
	card.Colors[0] = "green"

	assert.Equal(t, "red", p.Colors[0])
}

func TestProductCard_TruncatesDescription(t *testing.T) {
	long := strings.Repeat("ü", MaxCardDescriptionRunes+20)
	card := Product{Name: "H", Description: long}.Card()

	assert.Equal(t, MaxCardDescriptionRunes, utf8.RuneCountInString(card.Description))
	assert.True(t, strings.HasSuffix(card.Description, "…"))

	short := Product{Name: "H", Description: "Soft fleece."}.Card()
	assert.Equal(t, "Soft fleece.", short.Description)
}

func TestCards_PreservesOrder(t *testing.T) {
	products := []Product{
		{Name: "Zip Hoodie", Price: 49.5},
		{Name: "Pullover", Price: 39},
		{Name: "Crop", Price: 29.99},
	}

	cards := Cards(products)

	require.Len(t, cards, 3)
	assert.Equal(t, "Zip Hoodie", cards[0].Name)
	assert.Equal(t, "$49.50", cards[0].Price)
	assert.Equal(t, "Pullover", cards[1].Name)
	assert.Equal(t, "Crop", cards[2].Name)
}
