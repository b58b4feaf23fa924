package testlink

import (
	"context"
	"log/slog"
	"net/http"
)

// Option configures a Listener.
type Option func(*Listener)

// WithLogger sets the logger. A nil logger keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Listener) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithDefaults replaces the default-value provider. The listener uses
// ChainDefaults{ScenarioDefaults{}, EnvDefaults{}} unless told otherwise.
func WithDefaults(d Defaults) Option {
	return func(l *Listener) {
		l.defaults = d
	}
}

// WithParsers sets the extraction strategies, in order. The default is
// NameParser then DocParser.
func WithParsers(parsers ...Parser) Option {
	return func(l *Listener) {
		l.parsers = parsers
	}
}

// WithDialer replaces how the listener connects to the server.
func WithDialer(d Dialer) Option {
	return func(l *Listener) {
		l.dial = d
	}
}

// WithAPI makes the listener use api instead of dialing the server. The
// listener still moves to StateConnected on first use.
func WithAPI(api API) Option {
	return WithDialer(func(context.Context, string, string, string) (API, error) {
		return api, nil
	})
}

// WithTransport sets the HTTP transport of the default XML-RPC dialer, e.g.
// to configure TLS for a server with a private certificate.
func WithTransport(rt http.RoundTripper) Option {
	return func(l *Listener) {
		l.transport = rt
	}
}
