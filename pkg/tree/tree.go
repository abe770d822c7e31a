// Package tree provides helpers for working with renter namespace paths and
// flat file listings.
package tree

import (
	"path"
	"sort"
	"strings"

	"github.com/fruitsalade/renterprobe/pkg/models"
)

// Clean normalizes a namespace path: no leading or trailing slash, no empty
// or dot segments. The root is the empty string.
func Clean(p string) string {
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}

// Join builds a child path from parent + name.
func Join(parent, name string) string {
	parent = Clean(parent)
	if parent == "" {
		return Clean(name)
	}
	return Clean(parent + "/" + name)
}

// Parent returns the parent folder path of p, or "" for top-level entries.
func Parent(p string) string {
	p = Clean(p)
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[:i]
	}
	return ""
}

// Base returns the last segment of p.
func Base(p string) string {
	p = Clean(p)
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// IsUnder reports whether p is a strict descendant of folder. A folder named
// "folder34" is not under "folder3".
func IsUnder(p, folder string) bool {
	p, folder = Clean(p), Clean(folder)
	if folder == "" {
		return p != ""
	}
	return strings.HasPrefix(p, folder+"/")
}

// Rebase moves p from under oldPrefix to under newPrefix. Paths that are not
// oldPrefix or below it are returned unchanged.
func Rebase(p, oldPrefix, newPrefix string) string {
	p, oldPrefix = Clean(p), Clean(oldPrefix)
	if p == oldPrefix {
		return Clean(newPrefix)
	}
	if IsUnder(p, oldPrefix) {
		return Join(newPrefix, strings.TrimPrefix(p, oldPrefix+"/"))
	}
	return p
}

// Names returns the set of entry names in a listing.
func Names(files []models.File) map[string]struct{} {
	names := make(map[string]struct{}, len(files))
	for _, f := range files {
		names[f.Name] = struct{}{}
	}
	return names
}

// Missing returns the expected paths absent from names, sorted.
func Missing(names map[string]struct{}, expected []string) []string {
	var missing []string
	for _, p := range expected {
		if _, ok := names[p]; !ok {
			missing = append(missing, p)
		}
	}
	sort.Strings(missing)
	return missing
}

// CountPath counts the entries in a listing whose name is exactly p.
func CountPath(files []models.File, p string) int {
	n := 0
	for _, f := range files {
		if f.Name == p {
			n++
		}
	}
	return n
}

// Descendants returns the listing entries under folder.
func Descendants(files []models.File, folder string) []models.File {
	var out []models.File
	for _, f := range files {
		if IsUnder(f.Name, folder) {
			out = append(out, f)
		}
	}
	return out
}

// FindByPath returns the listing entry named p.
func FindByPath(files []models.File, p string) (*models.File, bool) {
	for i := range files {
		if files[i].Name == p {
			return &files[i], true
		}
	}
	return nil, false
}

// FindByID returns the listing entry with the given id.
func FindByID(files []models.File, id string) (*models.File, bool) {
	for i := range files {
		if files[i].ID == id {
			return &files[i], true
		}
	}
	return nil, false
}
