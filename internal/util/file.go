package util

import (
	"io"
	"net/http"
	"strings"
)

// DetectUploadType 按文件头识别 MIME 类型并回到文件开头，allowed 为前缀或完整类型
func DetectUploadType(r io.ReadSeeker, allowed ...string) (string, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	if n == 0 {
		return "", NewValidationError("file", "file is empty")
	}

	mimeType := http.DetectContentType(head[:n])
	for _, a := range allowed {
		if strings.HasPrefix(mimeType, a) {
			return mimeType, nil
		}
	}
	return mimeType, NewValidationError("file", "file type %s is not allowed", mimeType)
}
