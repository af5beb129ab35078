package media

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NamePolicy turns uploaded filenames into stored ones.
// The zero value transliterates and probes up to DefaultMaxNameProbes names.
type NamePolicy struct {
	Strategy RenameStrategy
	// MaxProbes caps EnsureUnique. Non-positive means DefaultMaxNameProbes.
	MaxProbes int
	// Transform replaces Transliterate for the transliterate strategy.
	Transform func(string) string
	// Now and Entropy feed the unique strategy; nil uses time.Now and crypto/rand.
	Now     func() time.Time
	Entropy io.Reader
}

// ResolveDesiredName applies strategy to name with a default policy.
func ResolveDesiredName(name string, strategy RenameStrategy) string {
	return NamePolicy{Strategy: strategy}.ResolveDesiredName(name)
}

// EnsureUnique returns name, or the first free "base_N.ext" variant of it,
// probing with exists. See NamePolicy.EnsureUnique.
func EnsureUnique(name string, exists func(candidate string) bool) (string, error) {
	return NamePolicy{}.EnsureUnique(name, exists)
}

// ResolveDesiredName returns the name the policy wants to store name under.
// It does not look at storage.
func (p NamePolicy) ResolveDesiredName(name string) string {
	switch p.Strategy {
	case RenameKeep:
		return name
	case RenameUnique:
		return p.uniquePrefix() + "." + name
	default:
		if p.Transform != nil {
			return p.Transform(name)
		}
		return Transliterate(name)
	}
}

// EnsureUnique returns name when exists reports it free. Otherwise it tries
// base_1.ext, base_2.ext, ... and returns the first free candidate. The
// result is deterministic for a deterministic exists. After MaxProbes taken
// candidates it fails with ErrNameResolution.
func (p NamePolicy) EnsureUnique(name string, exists func(candidate string) bool) (string, error) {
	if !exists(name) {
		return name, nil
	}

	limit := p.MaxProbes
	if limit <= 0 {
		limit = DefaultMaxNameProbes
	}

	base, ext := SplitName(name)
	for n := 1; n <= limit; n++ {
		candidate := base + "_" + strconv.Itoa(n) + ext
		if !exists(candidate) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: %q taken after %d probes", ErrNameResolution, name, limit)
}

// SplitName splits at the last dot: "a.tar.gz" gives ("a.tar", ".gz"),
// ".gitignore" gives ("", ".gitignore") and "README" gives ("README", "").
func SplitName(name string) (base, ext string) {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return name, ""
	}
	return name[:i], name[i:]
}

func (p NamePolicy) uniquePrefix() string {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	entropy := p.Entropy
	if entropy == nil {
		entropy = rand.Reader
	}

	salt := make([]byte, 16)
	// A short read leaves zeros in the salt; the timestamp still varies.
	_, _ = io.ReadFull(entropy, salt)

	sum := blake2b.Sum256(append([]byte(strconv.FormatInt(now().UnixNano(), 10)), salt...))
	return hex.EncodeToString(sum[:])[:32]
}

// foldASCII decomposes characters and drops combining marks (é -> e).
var foldASCII = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Letters that carry no combining mark and survive NFKD.
var letterReplacer = strings.NewReplacer(
	"ß", "ss", "æ", "ae", "Æ", "AE", "œ", "oe", "Œ", "OE",
	"ø", "o", "Ø", "O", "đ", "d", "Đ", "D", "ł", "l", "Ł", "L",
	"þ", "th", "Þ", "TH", "ð", "d", "Ð", "D", "ı", "i",
)

// Transliterate lowercases name, folds it to ASCII, turns whitespace into
// underscores, drops anything outside [0-9a-z_.-] and collapses runs of the
// same separator. Clean names are returned unchanged. A name with nothing
// left becomes "unnamed".
func Transliterate(name string) string {
	folded, _, err := transform.String(foldASCII, letterReplacer.Replace(name))
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	var last rune
	for _, r := range folded {
		if unicode.IsSpace(r) {
			r = '_'
		}
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r == '_' || r == '.' || r == '-':
			if r == last {
				continue
			}
		default:
			continue
		}
		b.WriteRune(r)
		last = r
	}

	if b.Len() == 0 {
		return "unnamed"
	}
	return b.String()
}
