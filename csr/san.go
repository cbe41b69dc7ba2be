package csr

import (
	"errors"
	"fmt"
	"strings"
)

// SANKind identifies one of the three supported subject-alternative-name
// kinds.
type SANKind string

const (
	KindDNS   SANKind = "DNS"
	KindIP    SANKind = "IP"
	KindEmail SANKind = "EMAIL"
)

// ErrInvalidSAN is returned for malformed or unknown-kind SAN tokens.
var ErrInvalidSAN = errors.New("invalid SAN entry")

// SAN is a single subject-alternative-name entry. Exactly one kind
// applies per entry; the value is stored case-preserving.
type SAN struct {
	Kind  SANKind
	Value string
}

// ParseSAN parses a single KIND:value token. The kind is matched
// case-insensitively; unknown kinds are an explicit error rather than a
// silent default.
func ParseSAN(s string) (SAN, error) {
	kind, value, ok := strings.Cut(s, ":")
	if !ok || value == "" {
		return SAN{}, fmt.Errorf("%q: %w", s, ErrInvalidSAN)
	}
	switch SANKind(strings.ToUpper(kind)) {
	case KindDNS:
		return SAN{Kind: KindDNS, Value: value}, nil
	case KindIP:
		return SAN{Kind: KindIP, Value: value}, nil
	case KindEmail:
		return SAN{Kind: KindEmail, Value: value}, nil
	default:
		return SAN{}, fmt.Errorf("unknown SAN kind %q: %w", kind, ErrInvalidSAN)
	}
}

// ParseSANList parses a comma-joined list of KIND:value tokens,
// preserving input order. Whitespace around tokens is ignored.
func ParseSANList(s string) ([]SAN, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	sans := make([]SAN, 0, len(parts))
	for _, part := range parts {
		san, err := ParseSAN(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		sans = append(sans, san)
	}
	return sans, nil
}

// String renders the entry in its textual KIND:value form.
func (s SAN) String() string {
	return string(s.Kind) + ":" + s.Value
}

// FormatSANList renders entries as a comma-joined list, the inverse of
// ParseSANList.
func FormatSANList(sans []SAN) string {
	parts := make([]string, len(sans))
	for i, s := range sans {
		parts[i] = s.String()
	}
	return strings.Join(parts, ",")
}
