package classifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evcraddock/mela/internal/brand"
)

func TestCatalogDetector(t *testing.T) {
	d := NewCatalogDetector()

	tests := []struct {
		name string
		c    Content
		want string
	}{
		{"title", Content{Title: "Nike running shoes"}, "Nike"},
		{"description", Content{Title: "Jeans", Description: "Classic levi's 501, size 32"}, "Levi's"},
		{"longest wins", Content{Title: "Zara Kids coat age 6"}, "Zara Kids"},
		{"ampersand", Content{Title: "H&M summer top"}, "H&M"},
		{"multi word", Content{Title: "Ralph Lauren polo"}, "Ralph Lauren"},
		{"punctuation", Content{Title: "Jacket (Superdry), barely worn"}, "Superdry"},
		{"partial word", Content{Title: "Zarathustra book"}, brand.Unknown},
		{"nothing", Content{Title: "Blue jumper", Description: "Hand knitted"}, brand.Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.DetectBrand(context.Background(), tt.c)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"levi's", "h&m", "top"}, tokenize("Levi’s, H&M top!"))
	assert.Empty(t, tokenize(" - "))
}
