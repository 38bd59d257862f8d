package ai_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"story-server/pkg/ai"
)

func TestExtractJSON(t *testing.T) {
	t.Run("Valid JSON is returned unchanged", func(t *testing.T) {
		raw := `{"title": "Test", "scenes": []}`

		got, err := ai.ExtractJSON(raw)
		require.NoError(t, err)
		assert.JSONEq(t, raw, string(got))
	})

	t.Run("Code fences with language tag are stripped", func(t *testing.T) {
		raw := "```json\n{\"title\": \"Fenced\"}\n```"

		got, err := ai.ExtractJSON(raw)
		require.NoError(t, err)
		assert.JSONEq(t, `{"title": "Fenced"}`, string(got))
	})

	t.Run("Unclosed code fence is still recoverable", func(t *testing.T) {
		raw := "```json\n{\"title\": \"Partial\"}"

		got, err := ai.ExtractJSON(raw)
		require.NoError(t, err)
		assert.JSONEq(t, `{"title": "Partial"}`, string(got))
	})

	t.Run("JSON surrounded by prose is extracted by brace bounds", func(t *testing.T) {
		raw := `Sure! Here is your story: {"title": "Extracted", "scenes": []} Hope you like it.`

		got, err := ai.ExtractJSON(raw)
		require.NoError(t, err)

		var parsed map[string]any
		require.NoError(t, json.Unmarshal(got, &parsed))
		assert.Equal(t, "Extracted", parsed["title"])
	})

	t.Run("Fenced JSON with prose inside the fence", func(t *testing.T) {
		raw := "```\nThe story follows:\n{\"title\": \"Nested\"}\n```"

		got, err := ai.ExtractJSON(raw)
		require.NoError(t, err)
		assert.JSONEq(t, `{"title": "Nested"}`, string(got))
	})

	t.Run("Plain prose without JSON is unrepairable", func(t *testing.T) {
		_, err := ai.ExtractJSON("Once upon a time there was no JSON at all.")
		assert.ErrorIs(t, err, ai.ErrUnrepairable)
	})

	t.Run("Structurally broken JSON is not semantically fixed", func(t *testing.T) {
		_, err := ai.ExtractJSON(`{"title": "Broken",}`)
		assert.ErrorIs(t, err, ai.ErrUnrepairable)
	})

	t.Run("Empty input is unrepairable", func(t *testing.T) {
		_, err := ai.ExtractJSON("   \n  ")
		assert.ErrorIs(t, err, ai.ErrUnrepairable)
	})
}
