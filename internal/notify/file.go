package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"sync"
)

const notificationsFilename = "notifications.jsonl"

// FileNotifier appends notifications as json lines to a file.
type FileNotifier struct {
	*NotifierConfig
	mu sync.Mutex
}

// NewFileNotifier returns a new FileNotifier
func NewFileNotifier(nc *NotifierConfig) (*FileNotifier, error) {
	if nc.FileDir == "" {
		return nil, errors.New("filedir needs to be specified for the FileNotifier")
	}
	if err := os.MkdirAll(nc.FileDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", nc.FileDir, err)
	}
	return &FileNotifier{NotifierConfig: nc}, nil
}

func (w *FileNotifier) Notify(ctx context.Context, n Notification) error {
	// SetEscapeHTML(false) keeps site messages readable
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(n); err != nil {
		return fmt.Errorf("error while encoding notification: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := os.OpenFile(path.Join(w.FileDir, notificationsFilename), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error while trying to open file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(buffer.Bytes()); err != nil {
		return fmt.Errorf("error while writing notification to file: %w", err)
	}
	return nil
}
