package httpclient

import "net/http"

// WithHeader sets a request header.
func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) {
		r.Header.Set(key, value)
	}
}

// WithUserAgent overrides the default User-Agent.
func WithUserAgent(ua string) RequestOption {
	return WithHeader("User-Agent", ua)
}

// WithAPIKey sets a static API-key header. Empty keys are skipped so the
// provider reports the missing credential itself.
func WithAPIKey(header, key string) RequestOption {
	return func(r *http.Request) {
		if key != "" {
			r.Header.Set(header, key)
		}
	}
}
