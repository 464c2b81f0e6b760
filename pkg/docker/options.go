package docker

import "time"

type clientOptions struct {
	host          string
	retryAttempts int
	retryBackoff  time.Duration
}

type Option func(*clientOptions)

// WithHost connects to a specific daemon instead of DOCKER_HOST or the platform default.
func WithHost(host string) Option {
	return func(o *clientOptions) {
		o.host = host
	}
}

// WithRetry sets how often transient daemon errors are retried during pulls and builds.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(o *clientOptions) {
		o.retryAttempts = attempts
		o.retryBackoff = backoff
	}
}
