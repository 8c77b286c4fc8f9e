package oidc

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
)

// go-oidc prefixes every remote key retrieval failure with this text and formats the
// error with %v on the way out of Verify, so the cause cannot be matched afterwards.
const fetchFailurePrefix = "fetching keys"

type probeKey struct{}

// fetchProbe carries a retrieval failure from the key set back to Validate.
type fetchProbe struct {
	mu  sync.Mutex
	err error
}

func (p *fetchProbe) set(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *fetchProbe) get() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func withProbe(ctx context.Context) (context.Context, *fetchProbe) {
	p := &fetchProbe{}
	return context.WithValue(ctx, probeKey{}, p), p
}

// probedKeySet records key retrieval failures of the wrapped key set on the probe in ctx.
type probedKeySet struct {
	next oidc.KeySet
}

func (k probedKeySet) VerifySignature(ctx context.Context, jwt string) ([]byte, error) {
	payload, err := k.next.VerifySignature(ctx, jwt)
	if err != nil && isFetchFailure(err) {
		if p, ok := ctx.Value(probeKey{}).(*fetchProbe); ok {
			p.set(err)
		}
	}
	return payload, err
}

func isFetchFailure(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return strings.HasPrefix(err.Error(), fetchFailurePrefix)
}
