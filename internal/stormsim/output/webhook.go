package output

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/canopyrisk/stormsim/internal/stormsim/metrics"
	"github.com/canopyrisk/stormsim/internal/stormsim/model"
)

const defaultWebhookTimeout = 30 * time.Second

// WebhookWriter POSTs row-sets to an HTTP endpoint as JSON bodies of the form
// {"file_name": <kind>, "results": <rows>}.
type WebhookWriter struct {
	url    string
	client *http.Client
}

func NewWebhookWriter(url string) *WebhookWriter {
	return &WebhookWriter{url: url}
}

func (w *WebhookWriter) Name() string {
	return "webhook"
}

// LazyInitialize builds the HTTP client inside the goroutine that will write.
func (w *WebhookWriter) LazyInitialize() error {
	w.client = &http.Client{Timeout: defaultWebhookTimeout}
	return nil
}

func (w *WebhookWriter) WriteRows(kind model.OutputKind, rows []model.Row) error {
	body, err := json.Marshal(map[string]interface{}{
		"file_name": string(kind),
		"results":   rows,
	})
	if err != nil {
		return errors.Wrap(err, "marshalling webhook body")
	}

	resp, err := w.client.Post(w.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return errors.Wrapf(err, "posting %d rows to webhook %s", len(rows), w.url)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("webhook %s rejected %d rows with status %s", w.url, len(rows), resp.Status)
	}
	metrics.RecordRowsWritten(w.Name(), string(kind), len(rows))
	return nil
}
