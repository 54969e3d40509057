package util

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectUploadTypeRewinds(t *testing.T) {
	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)
	r := bytes.NewReader(png)

	mimeType, err := DetectUploadType(r, MimeImage)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mimeType)

	rest, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, png, rest)
}

func TestDetectUploadTypeRejects(t *testing.T) {
	var ve *ValidationError

	_, err := DetectUploadType(bytes.NewReader([]byte("plain text, not a picture")), MimeImage)
	assert.ErrorAs(t, err, &ve)

	_, err = DetectUploadType(bytes.NewReader(nil), MimeImage)
	assert.ErrorAs(t, err, &ve)
}
