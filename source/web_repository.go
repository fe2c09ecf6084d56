package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/kscale/go-bootconfig/bootcfg"
)

// WebRepository is a struct that implements the Repository interface for
// handling a boot configuration fetched from a remote HTTP endpoint,
// usually another instance of this server.
type WebRepository struct {
	sync.RWMutex                   // RWMutex to synchronize access to data during refresh
	Name         string            // Name of the configuration source
	URL          *url.URL          // URL of the remote HTTP endpoint
	APIKey       string            // Optional API key for X-API-KEY header authentication
	doc          *bootcfg.Document // Parsed document
	rawData      []byte            // Raw bytes of the boot configuration file
}

// NewWebRepository creates a WebRepository for the given URL.
func NewWebRepository(name, rawURL string) (*WebRepository, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	return &WebRepository{Name: name, URL: parsed}, nil
}

// GetName returns the name of the configuration source.
func (w *WebRepository) GetName() string {
	return w.Name
}

// Document returns the last successfully parsed boot configuration.
func (w *WebRepository) Document() *bootcfg.Document {
	w.RLock()
	defer w.RUnlock()
	return w.doc
}

// GetRawData returns the raw bytes of the boot configuration file.
func (w *WebRepository) GetRawData() []byte {
	w.RLock()
	defer w.RUnlock()
	return w.rawData
}

// Refresh fetches the boot configuration from the remote endpoint and
// swaps in the parsed document.
func (w *WebRepository) Refresh() error {
	ctx := context.Background()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, w.URL.String(), nil)
	if err != nil {
		logrus.WithError(err).Debug("error creating request")
		return err
	}

	if w.APIKey != "" {
		request.Header.Set("X-API-KEY", w.APIKey)
	}

	resp, err := http.DefaultClient.Do(request)
	if err != nil {
		logrus.WithError(err).Debug("error doing request")
		return err
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			logrus.WithError(err).Debug("error closing response body")
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s fetching %s", resp.Status, w.URL)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		logrus.WithError(err).Debug("error reading response")
		return err
	}

	doc := bootcfg.Parse(data)

	// Only lock for the atomic swap
	w.Lock()
	w.doc = doc
	w.rawData = data
	w.Unlock()

	return nil
}
