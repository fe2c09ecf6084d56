// Package client polls a boot-configuration repository and exposes
// typed access to its directives.
package client

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kscale/go-bootconfig/bootcfg"
	"github.com/kscale/go-bootconfig/source"
)

// ErrNotFound is returned when a directive key is absent from the
// current document.
var ErrNotFound = errors.New("directive not found")

type Client struct {
	Repository      source.Repository
	RefreshInterval time.Duration
	cancel          context.CancelFunc
}

// NewClient creates a Client and performs the first refresh so the
// caller never observes an empty document. A background goroutine then
// refreshes the repository on the given interval until Close is called
// or the context is canceled.
func NewClient(ctx context.Context, repository source.Repository, refreshInterval time.Duration) (*Client, error) {
	ctx, cancel := context.WithCancel(ctx)

	client := &Client{
		Repository:      repository,
		RefreshInterval: refreshInterval,
		cancel:          cancel,
	}

	if err := client.Repository.Refresh(); err != nil {
		cancel()
		return nil, fmt.Errorf("initial refresh: %w", err)
	}

	go refresh(ctx, client)

	return client, nil
}

// refresh periodically refreshes the repository until the context is
// canceled. Refresh errors are logged and the previous document stays
// in effect, the way firmware keeps booting with the last good file.
func refresh(ctx context.Context, client *Client) {
	ticker := time.NewTicker(client.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := client.Repository.Refresh(); err != nil {
				logrus.WithError(err).Error("error refreshing repository")
			}
		case <-ctx.Done():
			return
		}
	}
}

// Close stops the background refresh goroutine. It should be called
// when the Client is no longer needed to avoid a goroutine leak.
func (c *Client) Close() {
	c.cancel()
}

// Document returns the current boot configuration document.
func (c *Client) Document() *bootcfg.Document {
	return c.Repository.Document()
}

// GetString returns the value of the last directive with the given
// key. Values are opaque strings exactly as firmware sees them.
func (c *Client) GetString(key string) (string, error) {
	value, ok := c.Repository.Document().Lookup(key)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return value, nil
}

// GetInt returns the value of the last directive with the given key
// parsed as an integer.
func (c *Client) GetInt(key string) (int, error) {
	value, err := c.GetString(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("directive %s is not an integer: %w", key, err)
	}
	return n, nil
}

// GetFlag reports whether the key is enabled: present as a bare flag
// or set to "1". An absent key is simply false, not an error.
func (c *Client) GetFlag(key string) bool {
	return c.Repository.Document().Flag(key)
}

// GetAll returns every directive with the given key in file order.
// Repeating keys like dtoverlay make single-value lookups lossy.
func (c *Client) GetAll(key string) []bootcfg.Directive {
	return c.Repository.Document().LookupAll(key)
}

// Section returns the directives of the named section. The default
// (pre-marker) section is named "".
func (c *Client) Section(name string) []bootcfg.Directive {
	return c.Repository.Document().Section(name)
}
