package site

import (
	"fmt"
	"slices"
	"strings"

	"github.com/k11v/sitegen/internal/fault"
)

// DefaultNames are the files a generated site consists of unless configured otherwise.
var DefaultNames = []string{"index.html", "style.css", "script.js"}

// Files that are written next to the generated site but never generated.
const (
	LicenseName = "LICENSE"
	ReadmeName  = "README.md"
)

// FileSet maps a file name to its full content.
type FileSet map[string]string

// Names returns the file names in lexical order.
func (fs FileSet) Names() []string {
	names := make([]string, 0, len(fs))
	for name := range fs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Check reports whether fs contains exactly the given names.
// The returned error wraps fault.ErrMalformedResponse.
func (fs FileSet) Check(names []string) error {
	var missing, unexpected []string
	for _, name := range names {
		if _, ok := fs[name]; !ok {
			missing = append(missing, name)
		}
	}
	for _, name := range fs.Names() {
		if !slices.Contains(names, name) {
			unexpected = append(unexpected, name)
		}
	}

	switch {
	case len(missing) > 0 && len(unexpected) > 0:
		return fmt.Errorf("site: %w: missing %s, unexpected %s", fault.ErrMalformedResponse, quoteAll(missing), quoteAll(unexpected))
	case len(missing) > 0:
		return fmt.Errorf("site: %w: missing %s", fault.ErrMalformedResponse, quoteAll(missing))
	case len(unexpected) > 0:
		return fmt.Errorf("site: %w: unexpected %s", fault.ErrMalformedResponse, quoteAll(unexpected))
	}
	return nil
}

// ValidName reports whether name can be used as a file name of a site.
// Only plain names are allowed; paths and the reserved LICENSE and README.md are not.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return false
	}
	return name != LicenseName && name != ReadmeName
}

func quoteAll(ss []string) string {
	quoted := make([]string, len(ss))
	for i, s := range ss {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(quoted, ", ")
}
