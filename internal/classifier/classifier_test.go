package classifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/evcraddock/mela/internal/brand"
)

func TestCleanResponse(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Nike", "Nike"},
		{"  nike \n", "Nike"},
		{"\"Zara\"", "Zara"},
		{"**Gucci**", "Gucci"},
		{"Brand: Levi's.", "Levi's"},
		{"h&m\nextra explanation", "H&M"},
		{"UNKNOWN", brand.Unknown},
		{"unknown.", brand.Unknown},
		{"", brand.Unknown},
		{"   \n  ", brand.Unknown},
		{"Acne   Studios", "Acne Studios"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanResponse(tt.in))
		})
	}
}

func TestContentPrompt(t *testing.T) {
	c := Content{Title: "Red dress", Description: "Worn once"}
	assert.Equal(t, "Title: Red dress\nDescription: Worn once", c.Prompt())
}

func TestDetectorFunc(t *testing.T) {
	d := DetectorFunc(func(_ context.Context, c Content) (string, error) {
		return c.Title, nil
	})
	got, err := d.DetectBrand(context.Background(), Content{Title: "Nike"})
	assert.NoError(t, err)
	assert.Equal(t, "Nike", got)
}
