package docker

import (
	"errors"
	"io"
	"strings"
	"syscall"

	"github.com/docker/docker/client"
)

// Error messages vary between different backends (dockerd, containerd, podman, orbstack, etc) or even versions of docker.
// These helpers normalize the check so callers can handle situations without worrying about the underlying implementation.

func isImageNotFoundError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "image does not exist") ||
		strings.Contains(msg, "No such image") ||
		strings.Contains(msg, "pull access denied") ||
		strings.Contains(msg, "manifest unknown")
}

func isAuthorizationFailedError(err error) bool {
	msg := err.Error()

	// registry requires auth and none were provided
	if strings.Contains(msg, "no basic auth credentials") {
		return true
	}

	// registry rejected the provided auth
	if strings.Contains(msg, "authorization failed") ||
		strings.Contains(msg, "401 Unauthorized") ||
		strings.Contains(msg, "unauthorized: authentication required") {
		return true
	}

	return false
}

// isTransientError reports errors worth retrying: dropped connections and registry hiccups
// while the daemon fetches the base image.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if client.IsErrConnectionFailed(err) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "TLS handshake timeout") ||
		strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "connection reset by peer") ||
		strings.Contains(msg, "502 Bad Gateway") ||
		strings.Contains(msg, "503 Service Unavailable") ||
		strings.Contains(msg, "toomanyrequests")
}
