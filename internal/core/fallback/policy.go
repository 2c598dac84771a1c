package fallback

import (
	"fmt"
	"strings"

	"github.com/samber/mo"

	"github.com/jinford/gpsrag/internal/core/rag"
)

// Reason はフォールバックに至った理由
type Reason string

const (
	ReasonNoContext        Reason = "no_context"
	ReasonEmbedFailed      Reason = "embed_failed"
	ReasonStoreUnavailable Reason = "store_unavailable"
	ReasonGenerateFailed   Reason = "generate_failed"
	ReasonInternal         Reason = "internal"
)

// ContextExcerptLength は文脈付きフォールバックで引用する最大文字数
const ContextExcerptLength = 400

var (
	gnssTerms  = []string{"gps", "gnss", "satellite", "position", "glonass", "galileo", "beidou"}
	ubloxTerms = []string{"u-blox", "ublox", "module", "chip", "receiver"}
)

const (
	gnssResponse = "GPS (Global Positioning System) is a satellite navigation system that uses a constellation " +
		"of satellites to provide position information. GNSS (Global Navigation Satellite System) is the broader " +
		"term that covers GPS and other systems such as GLONASS, Galileo and BeiDou.\n\n" +
		"For specific information about u-blox modules, please upload the relevant user manual."

	ubloxResponse = "u-blox is a leading supplier of GNSS receivers, modules and chips for positioning and " +
		"wireless communication. Their products are used in everything from cars to IoT devices.\n\n" +
		"For detailed technical information, upload the user manual for the specific u-blox module you are working with."

	genericResponse = "I can help with questions about GPS/GNSS technology and u-blox modules.\n\n" +
		"To give precise answers, please upload relevant user manuals or technical documentation first. " +
		"I can then search the documents and provide specific technical details."

	contextualTemplate = "Based on the document \"%[1]s\" I found the following relevant information:\n\n" +
		"%[2]s\n\n" +
		"For more detailed information, see the document \"%[1]s\".\n\n" +
		"Note: this is an automatically generated answer based on document search. " +
		"For precise technical details, refer to the complete documentation."
)

// Input はフォールバック応答の入力
type Input struct {
	Query  string
	Reason Reason
	Best   mo.Option[rag.SearchResult] // 最も関連度の高い検索結果（あれば）
}

// Policy は上流の失敗時に決定的な応答を返す
type Policy struct{}

// NewPolicy は Policy を作成する
func NewPolicy() *Policy {
	return &Policy{}
}

// Respond は入力に対するフォールバック応答を返す。外部呼び出しは行わない。
func (p *Policy) Respond(in Input) rag.AnswerPayload {
	reason := in.Reason
	if reason == "" {
		reason = ReasonInternal
	}

	response := KeywordResponse(in.Query)
	if best, ok := in.Best.Get(); ok && reason == ReasonGenerateFailed && strings.TrimSpace(best.Chunk.Text) != "" {
		response = ContextualResponse(best)
	}

	return rag.AnswerPayload{
		Response:       response,
		Sources:        []rag.SourceCitation{},
		ContextUsed:    false,
		Confidence:     0,
		Fallback:       true,
		FallbackReason: string(reason),
	}
}

// KeywordResponse は質問に含まれるキーワードで定型文を選ぶ
// GNSS 関連語、u-blox 関連語、その他の順で最初に一致したものを返す
func KeywordResponse(query string) string {
	lower := strings.ToLower(query)
	switch {
	case containsAny(lower, gnssTerms):
		return gnssResponse
	case containsAny(lower, ubloxTerms):
		return ubloxResponse
	default:
		return genericResponse
	}
}

// ContextualResponse は検索結果の先頭部分を引用した応答を返す
func ContextualResponse(best rag.SearchResult) string {
	excerpt := []rune(best.Chunk.Text)
	text := string(excerpt)
	if len(excerpt) > ContextExcerptLength {
		text = string(excerpt[:ContextExcerptLength]) + "..."
	}
	return fmt.Sprintf(contextualTemplate, best.Filename, text)
}

func containsAny(s string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}
