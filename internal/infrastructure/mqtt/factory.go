package mqtt

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Factory creates clients with shared options and keeps a registry of the
// live ones, keyed by client ID. Construct one at process start and Close it
// at shutdown.
type Factory struct {
	opts []Option

	mu      sync.RWMutex
	clients map[string]*Client
}

// NewFactory returns a factory applying opts to every client it creates.
func NewFactory(opts ...Option) *Factory {
	return &Factory{
		opts:    opts,
		clients: make(map[string]*Client),
	}
}

// Create creates and registers a client. Per-call options are applied after
// the factory's shared options.
//
// Returns ErrClientExists if a live client already uses clientID; brokers
// disconnect the older of two sessions sharing an identifier.
func (f *Factory) Create(serverURI, clientID string, opts ...Option) (*Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.clients[clientID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrClientExists, clientID)
	}

	all := make([]Option, 0, len(f.opts)+len(opts))
	all = append(all, f.opts...)
	all = append(all, opts...)

	client, err := Create(serverURI, clientID, all...)
	if err != nil {
		return nil, err
	}

	client.onClose = f.remove
	f.clients[clientID] = client
	return client, nil
}

// Lookup returns the live client registered under clientID.
func (f *Factory) Lookup(clientID string) (*Client, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	c, ok := f.clients[clientID]
	return c, ok
}

// Len returns the number of live clients.
func (f *Factory) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients)
}

// ClientIDs returns the registered client IDs in sorted order.
func (f *Factory) ClientIDs() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ids := make([]string, 0, len(f.clients))
	for id := range f.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (f *Factory) remove(c *Client) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clients[c.clientID] == c {
		delete(f.clients, c.clientID)
	}
}

// Close closes every registered client and returns their errors joined.
func (f *Factory) Close() error {
	f.mu.RLock()
	clients := make([]*Client, 0, len(f.clients))
	for _, c := range f.clients {
		clients = append(clients, c)
	}
	f.mu.RUnlock()

	var errs []error
	for _, c := range clients {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", c.clientID, err))
		}
	}
	return errors.Join(errs...)
}
