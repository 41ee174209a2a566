// Package media builds types.Media payloads from files, URLs, and raw bytes,
// and writes generated payloads back to disk.
package media

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/condotto-ai/condotto/pkg/types"
)

var mimeByExtension = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// FromFile reads a local image file and returns a base64-sourced Media.
func FromFile(path string) (types.Media, error) {
	ext := strings.ToLower(filepath.Ext(path))
	mime, ok := mimeByExtension[ext]
	if !ok {
		return types.Media{}, fmt.Errorf("unsupported media extension %q", ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Media{}, fmt.Errorf("read media file: %w", err)
	}
	return types.Media{
		Type:       types.MediaImage,
		SourceType: types.SourceBase64,
		Source:     base64.StdEncoding.EncodeToString(data),
		MIMEType:   mime,
	}, nil
}

// FromURL returns a URL-sourced image Media.
func FromURL(url string) types.Media {
	return types.Media{
		Type:       types.MediaImage,
		SourceType: types.SourceURL,
		Source:     url,
	}
}

// FromBase64 wraps already-encoded payload bytes.
func FromBase64(mimeType, encoded string) types.Media {
	return types.Media{
		Type:       types.MediaImage,
		SourceType: types.SourceBase64,
		Source:     encoded,
		MIMEType:   mimeType,
	}
}

// DataURL renders the media as a data URI for providers that accept image
// URLs only. URL-sourced media is returned as-is.
func DataURL(m types.Media) string {
	if m.SourceType == types.SourceURL {
		return m.Source
	}
	mime := m.MIMEType
	if mime == "" {
		mime = "application/octet-stream"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, m.Source)
}

// SaveTimestamped writes payload bytes under dir with a timestamped name
// and returns the written path.
func SaveTimestamped(dir, prefix, ext string, payload []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	name := fmt.Sprintf("%s_%s%s", prefix, time.Now().Format("20060102_150405"), ext)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("write media file: %w", err)
	}
	return path, nil
}
