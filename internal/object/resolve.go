package object

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// MinPrefixLen is the minimum number of hexadecimal characters a prefix must
// have before resolution is attempted.
const MinPrefixLen = 7

// ErrNotFound is returned when no candidate starts with the prefix.
var ErrNotFound = errors.New("no object matches prefix")

// AmbiguousError is returned when two or more candidates share the prefix.
// Matches carries every candidate so callers can report all of them.
type AmbiguousError struct {
	Prefix  string
	Matches []ID
}

func (e *AmbiguousError) Error() string {
	shorts := make([]string, len(e.Matches))
	for i, id := range e.Matches {
		shorts[i] = id.Short()
	}
	return fmt.Sprintf("prefix %q is ambiguous: matches %s", e.Prefix, strings.Join(shorts, ", "))
}

// Resolve matches a case-insensitive hex prefix against candidates. It
// returns the unique match, ErrNotFound, or an *AmbiguousError listing all
// matches. It performs no lookup of its own; the caller supplies the
// candidate set.
func Resolve(prefix string, candidates []ID) (ID, error) {
	p := strings.ToLower(prefix)
	if len(p) < MinPrefixLen {
		return "", fmt.Errorf("prefix %q is shorter than %d characters", prefix, MinPrefixLen)
	}
	if !isHex(p) {
		return "", fmt.Errorf("prefix %q is not hexadecimal", prefix)
	}

	var matches []ID
	for _, c := range candidates {
		if strings.HasPrefix(string(c), p) {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%q: %w", prefix, ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		sort.Slice(matches, func(i, j int) bool { return matches[i] < matches[j] })
		return "", &AmbiguousError{Prefix: prefix, Matches: matches}
	}
}
