package postgres

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"text/template"
)

//go:embed schema.sql
var schemaSQL string

var schemaTemplate = template.Must(template.New("schema").Parse(schemaSQL))

// RenderSchema はベクトル次元を埋め込んだ DDL を返す
func RenderSchema(dimension int) (string, error) {
	if dimension <= 0 {
		return "", fmt.Errorf("invalid embedding dimension: %d", dimension)
	}
	var buf bytes.Buffer
	if err := schemaTemplate.Execute(&buf, struct{ Dimension int }{dimension}); err != nil {
		return "", fmt.Errorf("failed to render schema: %w", err)
	}
	return buf.String(), nil
}

// EnsureSchema は pgvector 拡張とテーブルを作成する（既存なら何もしない）
func EnsureSchema(ctx context.Context, db DBTX, dimension int) error {
	ddl, err := RenderSchema(dimension)
	if err != nil {
		return err
	}
	if _, err := db.Exec(ctx, ddl); err != nil {
		return classify("ensure schema", err)
	}
	return nil
}
