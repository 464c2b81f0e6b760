// Package registry resolves image references against remote registries.
package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"
)

//nolint:staticcheck // ST1012: matches the docker command package naming
var NotFoundError = errors.New("image reference not found")

type options struct {
	insecure        bool
	defaultRegistry string
	transport       http.RoundTripper
}

type Option func(*options)

// WithInsecure allows plain HTTP and self-signed registries.
func WithInsecure(insecure bool) Option {
	return func(o *options) {
		o.insecure = insecure
	}
}

// WithDefaultRegistry sets the registry used for references without a host (docker.io otherwise).
func WithDefaultRegistry(registry string) Option {
	return func(o *options) {
		o.defaultRegistry = registry
	}
}

// WithTransport overrides the HTTP transport, mainly for tests.
func WithTransport(t http.RoundTripper) Option {
	return func(o *options) {
		o.transport = t
	}
}

func collect(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) nameOptions() []name.Option {
	var nameOpts []name.Option
	if o.insecure {
		nameOpts = append(nameOpts, name.Insecure)
	}
	if o.defaultRegistry != "" {
		nameOpts = append(nameOpts, name.WithDefaultRegistry(o.defaultRegistry))
	}
	return nameOpts
}

func (o options) remoteOptions(ctx context.Context) []remote.Option {
	remoteOpts := []remote.Option{
		remote.WithContext(ctx),
		remote.WithAuthFromKeychain(authn.DefaultKeychain),
	}
	if o.transport != nil {
		remoteOpts = append(remoteOpts, remote.WithTransport(o.transport))
	}
	return remoteOpts
}

// ParseRef parses an image reference the same way for validation, pinning and resolving.
func ParseRef(ref string, opts ...Option) (name.Reference, error) {
	parsed, err := name.ParseReference(ref, collect(opts).nameOptions()...)
	if err != nil {
		return nil, fmt.Errorf("parsing reference %q: %w", ref, err)
	}
	return parsed, nil
}

// ResolveDigest returns the manifest digest ref currently points at. Registries that do
// not answer HEAD requests are retried with a full manifest GET.
func ResolveDigest(ctx context.Context, ref string, opts ...Option) (v1.Hash, error) {
	o := collect(opts)
	parsed, err := name.ParseReference(ref, o.nameOptions()...)
	if err != nil {
		return v1.Hash{}, fmt.Errorf("parsing reference %q: %w", ref, err)
	}

	desc, err := remote.Head(parsed, o.remoteOptions(ctx)...)
	if err == nil {
		return desc.Digest, nil
	}
	if isNotFound(err) {
		return v1.Hash{}, fmt.Errorf("%s: %w", ref, NotFoundError)
	}

	got, getErr := remote.Get(parsed, o.remoteOptions(ctx)...)
	if getErr != nil {
		if isNotFound(getErr) {
			return v1.Hash{}, fmt.Errorf("%s: %w", ref, NotFoundError)
		}
		return v1.Hash{}, fmt.Errorf("fetching descriptor for %s: %w", ref, getErr)
	}
	return got.Digest, nil
}

// Pin returns ref with its digest appended, keeping the tag for readability:
// python:3.11-slim becomes python:3.11-slim@sha256:....
func Pin(ctx context.Context, ref string, opts ...Option) (string, error) {
	parsed, err := ParseRef(ref, opts...)
	if err != nil {
		return "", err
	}
	if digest, ok := parsed.(name.Digest); ok {
		// Already pinned; make sure the digest still exists.
		if _, err := ResolveDigest(ctx, digest.String(), opts...); err != nil {
			return "", err
		}
		return ref, nil
	}

	digest, err := ResolveDigest(ctx, ref, opts...)
	if err != nil {
		return "", err
	}
	return ref + "@" + digest.String(), nil
}

func Exists(ctx context.Context, ref string, opts ...Option) (bool, error) {
	if _, err := ResolveDigest(ctx, ref, opts...); err != nil {
		if errors.Is(err, NotFoundError) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func isNotFound(err error) bool {
	if checkError(err, transport.ManifestUnknownErrorCode, transport.NameUnknownErrorCode) {
		return true
	}
	var e *transport.Error
	return errors.As(err, &e) && e.StatusCode == http.StatusNotFound
}

func checkError(err error, codes ...transport.ErrorCode) bool {
	if err == nil {
		return false
	}

	var e *transport.Error
	if errors.As(err, &e) {
		for _, diagnosticErr := range e.Errors {
			for _, code := range codes {
				if diagnosticErr.Code == code {
					return true
				}
			}
		}
	}
	return false
}
