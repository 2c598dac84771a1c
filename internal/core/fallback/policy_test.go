package fallback

import (
	"strings"
	"testing"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/gpsrag/internal/core/rag"
)

func TestKeywordResponse(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{name: "GPS", query: "How does GPS work?", want: gnssResponse},
		{name: "大文字小文字を区別しない", query: "what is GNSS", want: gnssResponse},
		{name: "Galileo", query: "Is Galileo supported?", want: gnssResponse},
		{name: "u-blox", query: "Tell me about U-Blox", want: ubloxResponse},
		{name: "module", query: "Which module should I buy?", want: ubloxResponse},
		{name: "GNSS語がu-blox語より優先", query: "Does the ublox chip track satellites?", want: gnssResponse},
		{name: "該当なし", query: "What's the weather like?", want: genericResponse},
		{name: "空文字", query: "", want: genericResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KeywordResponse(tt.query))
		})
	}
}

func TestPolicy_Respond(t *testing.T) {
	p := NewPolicy()

	for _, reason := range []Reason{ReasonNoContext, ReasonEmbedFailed, ReasonStoreUnavailable, ReasonGenerateFailed, ReasonInternal} {
		t.Run(string(reason), func(t *testing.T) {
			payload := p.Respond(Input{Query: "gps accuracy", Reason: reason})

			assert.Equal(t, gnssResponse, payload.Response)
			assert.False(t, payload.ContextUsed)
			assert.True(t, payload.Fallback)
			assert.Equal(t, string(reason), payload.FallbackReason)
			require.NotNil(t, payload.Sources)
			assert.Empty(t, payload.Sources)
			assert.Zero(t, payload.Confidence)
		})
	}
}

func TestPolicy_Respond_EmptyReason(t *testing.T) {
	payload := NewPolicy().Respond(Input{Query: "hello"})
	assert.Equal(t, string(ReasonInternal), payload.FallbackReason)
	assert.Equal(t, genericResponse, payload.Response)
}

func TestPolicy_Respond_Contextual(t *testing.T) {
	best := rag.SearchResult{
		Chunk:    rag.Chunk{Text: strings.Repeat("z", 450)},
		Filename: "neo-m8.pdf",
		Score:    0.8,
	}
	p := NewPolicy()

	t.Run("生成失敗時は最良の結果を引用", func(t *testing.T) {
		payload := p.Respond(Input{Query: "gps", Reason: ReasonGenerateFailed, Best: mo.Some(best)})

		assert.Contains(t, payload.Response, `"neo-m8.pdf"`)
		assert.Contains(t, payload.Response, strings.Repeat("z", 400)+"...")
		assert.NotContains(t, payload.Response, strings.Repeat("z", 401))
		assert.False(t, payload.ContextUsed)
		assert.Empty(t, payload.Sources)
	})

	t.Run("他の理由ではキーワード応答", func(t *testing.T) {
		payload := p.Respond(Input{Query: "gps", Reason: ReasonStoreUnavailable, Best: mo.Some(best)})
		assert.Equal(t, gnssResponse, payload.Response)
	})
}
