// Package session identifies shoppers and validates the embedding client.
//
// Each shopper gets a session cookie that keys their cart slot. Embedding
// clients (theme snippets, kiosk wrappers) announce themselves via the
// Storefront-Client header, an RFC 8941 Dictionary:
//
//	version="1.4.0";platform="web"
//
// Clients below the configured minimum version are told to upgrade.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dunglas/httpsfv"
	"golang.org/x/mod/semver"
)

// ClientHeader is the header embedding clients send on every request.
const ClientHeader = "Storefront-Client"

// ClientInfo describes the embedding client.
type ClientInfo struct {
	Version  string
	Platform string
}

// ParseClientHeader extracts client info from a Storefront-Client value.
// The version key is required; platform is optional.
func ParseClientHeader(header string) (ClientInfo, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return ClientInfo{}, errors.New("empty Storefront-Client header")
	}

	dict, err := httpsfv.UnmarshalDictionary([]string{header})
	if err != nil {
		return ClientInfo{}, fmt.Errorf("invalid Storefront-Client header: %w", err)
	}

	info := ClientInfo{}
	member, ok := dict.Get("version")
	if !ok {
		return ClientInfo{}, errors.New("version key not found in Storefront-Client header")
	}
	item, ok := member.(httpsfv.Item)
	if !ok {
		return ClientInfo{}, errors.New("version value must be an item")
	}
	version, ok := item.Value.(string)
	if !ok {
		return ClientInfo{}, errors.New("version value must be a string")
	}
	info.Version = version

	if member, ok := dict.Get("platform"); ok {
		if item, ok := member.(httpsfv.Item); ok {
			if platform, ok := item.Value.(string); ok {
				info.Platform = platform
			}
		}
	}

	return info, nil
}

// CheckVersion reports whether the client version satisfies the minimum.
// Versions compare semantically; values semver cannot parse fall back to
// string equality with the minimum.
func CheckVersion(version, minimum string) bool {
	if minimum == "" {
		return true
	}
	v := canonical(version)
	min := canonical(minimum)
	if !semver.IsValid(v) || !semver.IsValid(min) {
		return version == minimum
	}
	return semver.Compare(v, min) >= 0
}

func canonical(version string) string {
	if version == "" {
		return version
	}
	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}
	return version
}

type contextKey struct{}

// sessionIDKey carries the session id through request contexts.
var sessionIDKey = contextKey{}

// WithSessionID returns a context carrying the session id.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// FromContext retrieves the session id set by the middleware.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey).(string)
	return id, ok
}
