// Package negotiation implements the storefront API version handshake.
// Clients announce themselves with a Storefront-Client header and servers
// answer with Storefront-API; both are RFC 8941 dictionaries carrying a
// semver version. A differing major version means the wire shapes may have
// moved, so the client warns and storefrontd rejects.
package negotiation

// Header names.
const (
	ClientHeader = "Storefront-Client"
	APIHeader    = "Storefront-API"
)

// ClientName identifies this library in the Storefront-Client header.
const ClientName = "storefront-go"

// SupportedAPIVersion is the backend API version this client is written against.
const SupportedAPIVersion = "v1.4.0"

// ClientVersion is this library's own version.
const ClientVersion = "v0.3.0"

// VersionUnsupported is the error code when a caller's API major differs.
const VersionUnsupported = "storefront_version_unsupported"

// ClientInfo is the decoded Storefront-Client header.
type ClientInfo struct {
	Name    string
	Version string
}

// contextKey is the type for context values to avoid collisions
type contextKey string

// ClientInfoKey is the context key for the caller's ClientInfo.
const ClientInfoKey contextKey = "storefront.client"
