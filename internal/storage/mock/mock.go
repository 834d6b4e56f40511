package mock

import (
	"context"
	"errors"
)

// ErrBroken is returned for every image id
var ErrBroken = errors.New("storage is broken")

// Provider implements a broken image storage
type Provider struct{}

// Get returns ErrBroken
func (p *Provider) Get(ctx context.Context, id string) ([]byte, error) {
	return nil, ErrBroken
}
