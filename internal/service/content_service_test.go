package service

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ai_mentor_backend/internal/repository"
	"ai_mentor_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes() []byte {
	return append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{1}, 64)...)
}

func localFile(root, url string) string {
	return filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(url, "/uploads/")))
}

func TestCoverReplacementRemovesOldObject(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	root := t.TempDir()
	h.cfg.Storage.Type = util.StorageLocal
	h.cfg.Storage.LocalPath = root
	content := NewContentService(repository.NewContentRepository(h.db), NewIndexService(repository.NewContentRepository(h.db), nil), NewStorageService(h.cfg))
	id := h.f.Textbook.ID

	img := pngBytes()
	first, err := content.UploadCover(ctx, h.teacher(), id, "cover.PNG", bytes.NewReader(img), int64(len(img)))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(first.CoverURL, ".png"))
	firstPath := localFile(root, first.CoverURL)
	require.FileExists(t, firstPath)

	second, err := content.UploadCover(ctx, h.teacher(), id, "cover2.png", bytes.NewReader(img), int64(len(img)))
	require.NoError(t, err)
	assert.NotEqual(t, first.CoverURL, second.CoverURL)
	assert.NoFileExists(t, firstPath)
	secondPath := localFile(root, second.CoverURL)
	require.FileExists(t, secondPath)

	// 学生不能修改教材
	_, err = content.UploadCover(ctx, h.student(0), id, "x.png", bytes.NewReader(img), int64(len(img)))
	assert.ErrorIs(t, err, util.ErrForbidden)

	text := []byte("definitely not an image")
	_, err = content.UploadCover(ctx, h.teacher(), id, "notes.txt", bytes.NewReader(text), int64(len(text)))
	var ve *util.ValidationError
	assert.ErrorAs(t, err, &ve)

	require.NoError(t, content.DeleteTextbook(ctx, h.teacher(), id))
	_, err = os.Stat(secondPath)
	assert.True(t, os.IsNotExist(err))
}
