package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// mediaPattern is the repeating payload for fake media files. Keeping it
// textual makes stray test output readable when a helper leaks a file.
var mediaPattern = []byte("GRABIT-FAKE-MEDIA ")

// WriteMediaFile fills path with size bytes of deterministic fake media
// payload, creating parent directories as needed. A size <= 0 writes a
// single byte. The path is returned so call sites can chain it into
// download outputs.
func WriteMediaFile(t testing.TB, path string, size int64) string {
	t.Helper()

	size = max(size, 1)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}

	buf := make([]byte, 0, 32*1024)
	for int64(len(buf)) < 32*1024 && int64(len(buf)) < size {
		buf = append(buf, mediaPattern...)
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fake media %s: %v", path, err)
	}
	defer f.Close()

	var written int64
	for written < size {
		chunk := buf
		if rest := size - written; rest < int64(len(chunk)) {
			chunk = chunk[:rest]
		}
		n, err := f.Write(chunk)
		if err != nil {
			t.Fatalf("write fake media %s: %v", path, err)
		}
		written += int64(n)
	}
	return path
}
