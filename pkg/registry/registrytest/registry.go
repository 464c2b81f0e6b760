// Package registrytest runs an in-memory OCI registry for tests.
package registrytest

import (
	"io"
	"log"
	"net/http/httptest"
	"net/url"
	"testing"

	ggcrregistry "github.com/google/go-containerregistry/pkg/registry"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/random"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/stretchr/testify/require"
)

type Registry struct {
	server *httptest.Server
	host   string
}

func StartTestRegistry(t *testing.T) *Registry {
	t.Helper()

	server := httptest.NewServer(ggcrregistry.New(ggcrregistry.Logger(log.New(io.Discard, "", 0))))
	t.Cleanup(server.Close)

	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	return &Registry{server: server, host: u.Host}
}

func (r *Registry) Host() string {
	return r.host
}

// ImageRef qualifies repo:tag with the registry host.
func (r *Registry) ImageRef(ref string) string {
	return r.host + "/" + ref
}

// PushRandomImage pushes a small random image to ref and returns its manifest digest.
func (r *Registry) PushRandomImage(t *testing.T, ref string) v1.Hash {
	t.Helper()

	img, err := random.Image(256, 1)
	require.NoError(t, err)

	parsed, err := name.ParseReference(r.ImageRef(ref), name.Insecure)
	require.NoError(t, err)
	require.NoError(t, remote.Write(parsed, img, remote.WithContext(t.Context())))

	digest, err := img.Digest()
	require.NoError(t, err)
	return digest
}
