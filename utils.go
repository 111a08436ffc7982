package gallery

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"path"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// DefaultKeyPrefix is the storage key prefix for user uploads.
const DefaultKeyPrefix = "user-upload/"

const (
	tokenLength      = 7
	tokenAlphabet    = "0123456789abcdefghijklmnopqrstuvwxyz"
	maxFilenameBytes = 128
)

// NewStorageKey builds a key of the form <prefix><unix millis>-<token>-<filename>.
// The random token keeps keys distinct for uploads of the same file within the
// same millisecond.
func NewStorageKey(prefix string, now time.Time, filename string) (string, error) {
	token, err := randomToken(tokenLength)
	if err != nil {
		return "", fmt.Errorf("new storage key: %w", err)
	}

	return fmt.Sprintf("%s%d-%s-%s", prefix, now.UnixMilli(), token, SanitizeFilename(filename)), nil
}

func randomToken(n int) (string, error) {
	limit := big.NewInt(int64(len(tokenAlphabet)))

	var b strings.Builder
	b.Grow(n)
	for range n {
		i, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(tokenAlphabet[i.Int64()])
	}

	return b.String(), nil
}

// SanitizeFilename reduces a client-supplied filename to a single safe key
// segment: directories are dropped and anything outside [A-Za-z0-9._-]
// becomes '-'.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(name)

	var b strings.Builder
	for _, r := range name {
		switch {
		case r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}

	cleaned := b.String()
	for strings.Contains(cleaned, "..") {
		cleaned = strings.ReplaceAll(cleaned, "..", ".")
	}
	cleaned = strings.TrimLeft(cleaned, ".")

	if len(cleaned) > maxFilenameBytes {
		cleaned = cleaned[len(cleaned)-maxFilenameBytes:]
	}

	if cleaned == "" {
		return "file"
	}

	return cleaned
}

// IsValidKey validates that a key string meets the requirements for a storage key.
// It checks that the key:
//   - is not empty, ".", or "/"
//   - is relative (does not start with "/")
//   - does not end with "/"
//   - does not contain ".." (path traversal)
//   - does not contain "//" (empty segments)
//   - does not contain invalid characters: \ ? # ~
//   - is valid UTF-8
//   - does not contain "." segments (/., /./, or ending with /.)
//   - does not contain null bytes, control characters (< 0x20), DEL (0x7f), or whitespace
func IsValidKey(p string) bool {
	if p == "" || p == "/" || p == "." {
		return false
	}

	if p[0] == '/' {
		return false
	}

	if strings.HasSuffix(p, "/") {
		return false
	}

	if strings.Contains(p, "..") {
		return false
	}

	if strings.Contains(p, "//") {
		return false
	}

	if strings.ContainsAny(p, `\?#~`) {
		return false
	}

	if !utf8.ValidString(p) {
		return false
	}

	if strings.HasPrefix(p, "./") || strings.Contains(p, "/./") || strings.HasSuffix(p, "/.") {
		return false
	}

	for _, r := range p {
		if r == 0 || r < 0x20 || r == 0x7f || unicode.IsSpace(r) {
			return false
		}
	}

	return true
}

// CDNURL returns the public URL of a storage key on the given CDN domain.
func CDNURL(domain, key string) string {
	return "https://" + domain + "/" + key
}

// DefaultTitle is the title given to uploads that arrive without one.
func DefaultTitle(now time.Time) string {
	return fmt.Sprintf("Image-%d", now.UnixMilli())
}
