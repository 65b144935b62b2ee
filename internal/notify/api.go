package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APINotifier posts notifications as json to a webhook style endpoint.
type APINotifier struct {
	*NotifierConfig
	client *http.Client
}

// NewAPINotifier returns a new APINotifier
func NewAPINotifier(nc *NotifierConfig) (*APINotifier, error) {
	if nc.Uri == "" {
		return nil, errors.New("uri needs to be specified for the APINotifier")
	}
	return &APINotifier{
		NotifierConfig: nc,
		client: &http.Client{
			Timeout: time.Second * 60,
		},
	}, nil
}

func (w *APINotifier) Notify(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.Uri, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if w.User != "" {
		req.SetBasicAuth(w.User, w.Password)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("error while sending post request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("error while reading post request response: %w", err)
		}
		return fmt.Errorf("error while posting notification. Status Code: %d Response: %s", resp.StatusCode, b)
	}
	return nil
}
