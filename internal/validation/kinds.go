package validation

import (
	"net/mail"
	"net/netip"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/idna"
)

// Kind is a named semantic validation
type Kind int

const (
	KindDomain Kind = iota + 1
	KindEmail
	KindIPAddress
	KindSlug
	KindURL
	KindUUID
)

var kindNames = map[string]Kind{
	"domain":     KindDomain,
	"email":      KindEmail,
	"ip_address": KindIPAddress,
	"slug":       KindSlug,
	"url":        KindURL,
	"uuid":       KindUUID,
}

// KindNames lists the recognized kind names in declaration order
func KindNames() []string {
	return []string{"domain", "email", "ip_address", "slug", "url", "uuid"}
}

// ParseKind maps a manifest kind name onto a Kind
func ParseKind(name string) (Kind, bool) {
	k, ok := kindNames[name]
	return k, ok
}

// String returns the manifest name of the kind
func (k Kind) String() string {
	switch k {
	case KindDomain:
		return "domain"
	case KindEmail:
		return "email"
	case KindIPAddress:
		return "ip_address"
	case KindSlug:
		return "slug"
	case KindURL:
		return "url"
	case KindUUID:
		return "uuid"
	}
	return "unknown"
}

// Check reports whether value satisfies the kind
func (k Kind) Check(value string) bool {
	switch k {
	case KindDomain:
		return isDomain(value)
	case KindEmail:
		return isEmail(value)
	case KindIPAddress:
		return isIPAddress(value)
	case KindSlug:
		return slugPattern.MatchString(value)
	case KindURL:
		return isURL(value)
	case KindUUID:
		return isUUID(value)
	}
	return false
}

var (
	slugPattern  = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)
	labelPattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)
	tldPattern   = regexp.MustCompile(`^([a-zA-Z]{2,63}|xn--[a-zA-Z0-9]{1,59})$`)
)

func isDomain(value string) bool {
	if value == "" || strings.TrimSpace(value) != value {
		return false
	}

	ascii, err := idna.Lookup.ToASCII(strings.TrimSuffix(value, "."))
	if err != nil || len(ascii) > 253 {
		return false
	}

	labels := strings.Split(ascii, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels[:len(labels)-1] {
		if !labelPattern.MatchString(label) {
			return false
		}
	}
	return tldPattern.MatchString(labels[len(labels)-1])
}

func isEmail(value string) bool {
	if strings.TrimSpace(value) == "" {
		return false
	}

	// net/mail also accepts "Name <addr>"; only a bare address is valid here
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		return false
	}

	at := strings.LastIndex(value, "@")
	return at > 0 && isDomain(value[at+1:])
}

func isIPAddress(value string) bool {
	_, err := netip.ParseAddr(value)
	return err == nil
}

func isURL(value string) bool {
	if strings.TrimSpace(value) == "" {
		return false
	}

	parsedURL, err := url.Parse(value)
	if err != nil {
		return false
	}

	return parsedURL.Scheme != "" && parsedURL.Host != ""
}

func isUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}
