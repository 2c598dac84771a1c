package search

import "errors"

// DefaultTopK は検索件数の既定値
const DefaultTopK = 5

// ErrEmptyQuery は空のクエリが渡された場合のエラー
var ErrEmptyQuery = errors.New("query is required")

// SearchParams は検索パラメータを表す
type SearchParams struct {
	Query string
	TopK  int // 0 以下なら既定値
}
