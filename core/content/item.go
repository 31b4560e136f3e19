// Package content defines the items held by the content store: feed posts
// and chat messages, their visibility tags and creation options.
package content

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrUnknownVisibility is returned by ParseVisibility for unrecognized labels.
var ErrUnknownVisibility = errors.New("unknown visibility")

// Kind distinguishes feed posts from chat messages.
type Kind uint8

const (
	// KindPost is an entry in an identity's feed.
	KindPost Kind = iota
	// KindChat is a message in the shared chat. Chat messages always expire.
	KindChat
)

func (k Kind) String() string {
	switch k {
	case KindPost:
		return "post"
	case KindChat:
		return "chat"
	default:
		return "unknown"
	}
}

// Visibility is the tag attached to a post. Only Ephemeral has an effect:
// ephemeral items are removed automatically after their expiry delay.
type Visibility uint8

const (
	Public Visibility = iota
	Private
	Ephemeral
)

// Visibilities lists the selectable tags in display order.
var Visibilities = []Visibility{Public, Private, Ephemeral}

func (v Visibility) String() string {
	switch v {
	case Public:
		return "public"
	case Private:
		return "private"
	case Ephemeral:
		return "ephemeral"
	default:
		return "unknown"
	}
}

// Label returns the display label shown next to a post's author.
func (v Visibility) Label() string {
	switch v {
	case Public:
		return "público"
	case Private:
		return "privado"
	case Ephemeral:
		return "efêmero"
	default:
		return "?"
	}
}

// ParseVisibility accepts the English names and the display labels, with or
// without accents, case-insensitively.
func ParseVisibility(s string) (Visibility, error) {
	switch foldLabel(s) {
	case "public", "publico":
		return Public, nil
	case "private", "privado":
		return Private, nil
	case "ephemeral", "efemero":
		return Ephemeral, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownVisibility, s)
	}
}

// foldLabel lowercases s and strips diacritics.
func foldLabel(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// Item is one user-generated entry in a collection.
type Item struct {
	// ID is unique within the process, derived from the creation time.
	ID string

	Kind Kind

	// Content is the text payload as submitted.
	Content string

	// Author is the display name of the identity that created a post.
	// Empty for chat messages.
	Author string

	Visibility Visibility

	CreatedAt time.Time

	// ExpiresAt is the scheduled removal time. Zero for items that never expire.
	ExpiresAt time.Time
}

// Expires reports whether the item is scheduled for automatic removal.
func (it Item) Expires() bool {
	return !it.ExpiresAt.IsZero()
}

// Options carries the recognized creation fields for Store.Add.
type Options struct {
	Kind Kind

	// Author is the creating identity's display name (posts only).
	Author string

	// Visibility of a post. Ignored for chat messages, which are always
	// ephemeral.
	Visibility Visibility

	// ExpiryDelay overrides the per-kind default delay for ephemeral items.
	// Zero means use the default.
	ExpiryDelay time.Duration
}

// IsEphemeral reports whether an item created with these options expires.
func (o Options) IsEphemeral() bool {
	return o.Kind == KindChat || o.Visibility == Ephemeral
}

// IsBlank reports whether s is empty or whitespace only. Blank content is
// never stored.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
