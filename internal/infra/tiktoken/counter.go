package tiktoken

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding は text-embedding-3 系モデルと互換のエンコーディングです
const DefaultEncoding = "cl100k_base"

// Counter は tiktoken によるトークン数カウンタです
type Counter struct {
	encoding *tiktoken.Tiktoken
}

// NewCounter は cl100k_base エンコーディングの Counter を作成します
func NewCounter() (*Counter, error) {
	return NewCounterWithEncoding(DefaultEncoding)
}

// NewCounterWithEncoding は指定したエンコーディングの Counter を作成します
func NewCounterWithEncoding(name string) (*Counter, error) {
	encoding, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoding %q: %w", name, err)
	}
	return &Counter{encoding: encoding}, nil
}

// CountTokens はテキストのトークン数を返します
func (c *Counter) CountTokens(text string) int {
	if c == nil || c.encoding == nil || text == "" {
		return 0
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// Estimate はエンコーダを使わずに文字数からトークン数を概算します
func Estimate(text string) int {
	n := len([]rune(text))
	if n == 0 {
		return 0
	}
	return n/4 + 1
}

// EstimateCounter は Estimate で数える TokenCounter です
// エンコーディングを取得できない環境で使います
type EstimateCounter struct{}

// CountTokens はテキストのトークン数を概算します
func (EstimateCounter) CountTokens(text string) int {
	return Estimate(text)
}
