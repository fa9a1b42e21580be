// Package id generates opaque, URL-safe identifiers prefixed by entity kind
// (e.g. "ses_", "prj_", "cor_"), in the style used throughout the terminal
// session stack: short enough to log, long enough to not collide.
package id

import (
	"strings"

	"github.com/google/uuid"
)

// Entity-kind prefixes for the identifiers this service mints.
const (
	PrefixSession     = "ses_"
	PrefixProject     = "prj_"
	PrefixCorrelation = "cor_"
	PrefixPattern     = "pat_"
	PrefixBuffer      = "buf_"
	PrefixTerminal    = "term_"
	PrefixSSH         = "ssh_"
	PrefixClient      = "cli_"
	PrefixCredential  = "cred_"
)

// New mints an opaque identifier with the given prefix. The suffix is a
// UUIDv4 stripped of hyphens and lowercased, which is already restricted to
// [0-9a-f] — a subset of the allowed [A-Za-z0-9_-] alphabet — and is always
// well over the required minimum length of 6 characters after the prefix.
func New(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + raw
}

// HasPrefix reports whether id was minted with the given entity-kind prefix.
func HasPrefix(value, prefix string) bool {
	return strings.HasPrefix(value, prefix)
}
