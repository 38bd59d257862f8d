package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzeScene(t *testing.T) {
	t.Run("Collects markers and picks motif of first matching group", func(t *testing.T) {
		got := AnalyzeScene("A brave rabbit exploring a dark forest at night", "fantasy")

		assert.Equal(t, MotifNest, got.Motif)
		assert.Equal(t, []string{"rabbit", "forest", "night"}, got.Keywords)
		assert.Equal(t, "fantasy", got.Palette.Name)
	})

	t.Run("Group order decides motif, not marker position in prompt", func(t *testing.T) {
		// "castle" стоит в промпте раньше "bunny", но группа nest приоритетнее
		got := AnalyzeScene("A castle where a bunny lives", "adventure")

		assert.Equal(t, MotifNest, got.Motif)
		assert.Contains(t, got.Keywords, "castle")
		assert.Contains(t, got.Keywords, "bunny")
	})

	t.Run("No markers produce generic motif", func(t *testing.T) {
		got := AnalyzeScene("Abstract swirls of color", "mystery")

		assert.Equal(t, MotifGeneric, got.Motif)
		assert.Empty(t, got.Keywords)
		assert.Equal(t, "mystery", got.Palette.Name)
	})

	t.Run("Matching is case-insensitive", func(t *testing.T) {
		got := AnalyzeScene("THE OCEAN ROARS", "kids")
		assert.Equal(t, MotifWave, got.Motif)
		assert.Equal(t, []string{"ocean"}, got.Keywords)
	})

	t.Run("Unknown genre falls back to kids palette", func(t *testing.T) {
		got := AnalyzeScene("a tree", "steampunk")
		assert.Equal(t, "kids", got.Palette.Name)
	})

	t.Run("Genre lookup is case-insensitive", func(t *testing.T) {
		got := AnalyzeScene("a tree", "Fantasy")
		assert.Equal(t, "fantasy", got.Palette.Name)
	})

	t.Run("Same input always yields same result", func(t *testing.T) {
		first := AnalyzeScene("knight and sword under the moon", "mystery")
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, AnalyzeScene("knight and sword under the moon", "mystery"))
		}
	})
}

func TestMustHexColor(t *testing.T) {
	t.Run("Parses RGB components", func(t *testing.T) {
		got := mustHexColor("#FF6B9D")
		assert.EqualValues(t, 0xFF, got.R)
		assert.EqualValues(t, 0x6B, got.G)
		assert.EqualValues(t, 0x9D, got.B)
		assert.EqualValues(t, 0xFF, got.A)
	})

	t.Run("Panics on malformed literal", func(t *testing.T) {
		assert.Panics(t, func() { mustHexColor("FF6B9D") })
		assert.Panics(t, func() { mustHexColor("#GGGGGG") })
	})
}
