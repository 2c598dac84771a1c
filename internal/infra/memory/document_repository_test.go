package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/gpsrag/internal/core/rag"
)

func TestDocumentRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository()

	older := &rag.Document{ID: uuid.New(), Filename: "older.pdf", Status: rag.DocumentStatusProcessing, UploadedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	newer := &rag.Document{ID: uuid.New(), Filename: "newer.pdf", Status: rag.DocumentStatusProcessing, UploadedAt: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, repo.CreateDocument(ctx, older))
	require.NoError(t, repo.CreateDocument(ctx, newer))

	require.NoError(t, repo.MarkDocumentReady(ctx, older.ID, 4, 120))
	assert.ErrorIs(t, repo.MarkDocumentReady(ctx, uuid.New(), 1, 1), rag.ErrDocumentNotFound)

	found, err := repo.GetDocument(ctx, older.ID)
	require.NoError(t, err)
	require.True(t, found.IsPresent())
	assert.Equal(t, rag.DocumentStatusReady, found.MustGet().Status)
	assert.Equal(t, 4, found.MustGet().ChunkCount)
	assert.Equal(t, 120, found.MustGet().TotalTokens)

	docs, err := repo.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "newer.pdf", docs[0].Filename)
	assert.Equal(t, "older.pdf", docs[1].Filename)

	require.NoError(t, repo.DeleteDocument(ctx, newer.ID))
	assert.ErrorIs(t, repo.DeleteDocument(ctx, newer.ID), rag.ErrDocumentNotFound)

	missing, err := repo.GetDocument(ctx, newer.ID)
	require.NoError(t, err)
	assert.False(t, missing.IsPresent())
}
