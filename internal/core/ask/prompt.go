package ask

import (
	"fmt"
	"strings"

	"github.com/jinford/gpsrag/internal/core/rag"
)

// SystemPrompt は回答生成時のシステムプロンプト
const SystemPrompt = "You are a technical assistant for GPS/GNSS technology and u-blox modules. " +
	"Answer only from the following context. Be specific and technically precise. " +
	"If the answer is not present in the context, state clearly that the documentation does not contain it."

const gpsDataNote = "Note: live GPS receiver data was requested, but it is not available to the assistant. " +
	"Answer from the documentation only."

// FormatContextBlock は検索結果 1 件を文脈ブロックに整形する
func FormatContextBlock(result rag.SearchResult) string {
	return fmt.Sprintf("From %s:\n%s", result.Filename, result.Chunk.Text)
}

// BuildUserPrompt は文脈ブロックと質問からユーザープロンプトを組み立てる
func BuildUserPrompt(question string, blocks []string, includeGPSData bool) string {
	var sb strings.Builder

	sb.WriteString("Based on the following documents, answer the question.\n\n")
	sb.WriteString("Documents:\n")
	sb.WriteString(strings.Join(blocks, "\n\n"))
	sb.WriteString("\n\n")

	if includeGPSData {
		sb.WriteString(gpsDataNote)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Question: ")
	sb.WriteString(question)

	return sb.String()
}

// Excerpt は先頭 ExcerptLength 文字を返し、切り詰めた場合は "..." を付ける
func Excerpt(text string) string {
	return truncate(text, ExcerptLength)
}

func truncate(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
