package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Options tune document persistence.
type Options struct {
	// WriteAttempts bounds how many times a document write is tried.
	WriteAttempts int
	// Backoff is the delay before the second attempt; it doubles after each failure.
	Backoff time.Duration
}

func (o Options) withDefaults() Options {
	if o.WriteAttempts <= 0 {
		o.WriteAttempts = 3
	}
	if o.Backoff <= 0 {
		o.Backoff = 500 * time.Millisecond
	}
	return o
}

// readFile returns nil data without error when the document doesn't exist yet.
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	return data, nil
}

// writeFile replaces the document through a temp file and rename, retrying
// failed attempts with exponential backoff.
func writeFile(path string, data []byte, opts Options) error {
	opts = opts.withDefaults()
	var lastErr error
	backoff := opts.Backoff
	for i := 0; i < opts.WriteAttempts; i++ {
		if lastErr = writeOnce(path, data); lastErr == nil {
			return nil
		}
		if i < opts.WriteAttempts-1 {
			log.Printf("[WARN] write %s failed (attempt %d/%d): %v, retrying in %v", path, i+1, opts.WriteAttempts, lastErr, backoff)
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return fmt.Errorf("write %s: all %d attempts failed: %w", path, opts.WriteAttempts, lastErr)
}

func writeOnce(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// encodeLines writes one compact JSON value per line between open and end.
func encodeLines(open, end string, items []json.RawMessage) []byte {
	var b bytes.Buffer
	b.WriteString(open)
	if len(items) > 0 {
		b.WriteString("\n")
	}
	for i, item := range items {
		b.WriteString("  ")
		b.Write(item)
		if i != len(items)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(end)
	b.WriteString("\n")
	return b.Bytes()
}
