package mediaproxy

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// KeyBuilder derives storage keys for new uploads.
type KeyBuilder struct {
	now   func() time.Time
	newID func() string
}

type KeyBuilderOption func(*KeyBuilder)

// WithClock overrides the time source.
func WithClock(now func() time.Time) KeyBuilderOption {
	return func(b *KeyBuilder) {
		b.now = now
	}
}

// WithIDSource overrides the random identifier source.
func WithIDSource(newID func() string) KeyBuilderOption {
	return func(b *KeyBuilder) {
		b.newID = newID
	}
}

func NewKeyBuilder(opts ...KeyBuilderOption) *KeyBuilder {
	b := &KeyBuilder{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build returns media/<yyyy>/<mm>/<uuid><ext> where ext is the lowercased
// extension of filename, if any. Year and month are taken in UTC, not the
// host's local zone, so an upload just after midnight local time may land
// in the previous month's prefix. A bare trailing dot ("a.") yields no
// extension.
func (b *KeyBuilder) Build(filename string) string {
	now := b.now().UTC()
	return fmt.Sprintf("media/%04d/%02d/%s%s", now.Year(), int(now.Month()), b.newID(), Ext(filename))
}

// Ext returns the lowercased extension of the last path element of name.
// Dotfiles such as ".env" and names ending in a dot-less segment have none.
func Ext(name string) string {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	i := strings.LastIndexByte(base, '.')
	if i <= 0 || i == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[i:])
}
