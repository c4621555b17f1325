// Package provider contains metadata provider implementations (Spotify,
// Deezer).
//
// The Provider interface is defined in internal/metadata (metadata.Provider),
// following the Go convention of defining interfaces where they are consumed.
// Each sub-package here implements that interface for a specific service.
package provider
