package tree

import (
	"reflect"
	"testing"

	"github.com/fruitsalade/renterprobe/pkg/models"
)

func TestJoinAndClean(t *testing.T) {
	tests := []struct {
		parent, name, want string
	}{
		{"", "a.txt", "a.txt"},
		{"/", "a.txt", "a.txt"},
		{"school", "a.txt", "school/a.txt"},
		{"/school/", "/a.txt", "school/a.txt"},
		{"a/b", "c", "a/b/c"},
	}
	for _, tt := range tests {
		if got := Join(tt.parent, tt.name); got != tt.want {
			t.Errorf("Join(%q, %q) = %q, want %q", tt.parent, tt.name, got, tt.want)
		}
	}
}

func TestParentAndBase(t *testing.T) {
	if got := Parent("school/a.txt"); got != "school" {
		t.Errorf("Parent = %q", got)
	}
	if got := Parent("a.txt"); got != "" {
		t.Errorf("Parent of top-level = %q", got)
	}
	if got := Base("a/b/c.txt"); got != "c.txt" {
		t.Errorf("Base = %q", got)
	}
}

func TestIsUnder(t *testing.T) {
	tests := []struct {
		p, folder string
		want      bool
	}{
		{"folder3/a", "folder3", true},
		{"folder34", "folder3", false},
		{"folder3", "folder3", false},
		{"a/b/c", "a", true},
		{"a", "", true},
	}
	for _, tt := range tests {
		if got := IsUnder(tt.p, tt.folder); got != tt.want {
			t.Errorf("IsUnder(%q, %q) = %v, want %v", tt.p, tt.folder, got, tt.want)
		}
	}
}

func TestRebase(t *testing.T) {
	if got := Rebase("folder2/sub/file", "folder2", "folder2_new"); got != "folder2_new/sub/file" {
		t.Errorf("Rebase child = %q", got)
	}
	if got := Rebase("folder2", "folder2", "folder2_new"); got != "folder2_new" {
		t.Errorf("Rebase self = %q", got)
	}
	if got := Rebase("folder23", "folder2", "x"); got != "folder23" {
		t.Errorf("Rebase sibling with shared prefix = %q", got)
	}
}

func TestMissingAndDescendants(t *testing.T) {
	files := []models.File{
		{ID: "1", Name: "a.txt"},
		{ID: "2", Name: "school", IsDir: true},
		{ID: "3", Name: "school/a.txt"},
	}
	names := Names(files)
	missing := Missing(names, []string{"work/a.txt", "a.txt", "school/a.txt", "b.txt"})
	if !reflect.DeepEqual(missing, []string{"b.txt", "work/a.txt"}) {
		t.Errorf("Missing = %v", missing)
	}

	desc := Descendants(files, "school")
	if len(desc) != 1 || desc[0].ID != "3" {
		t.Errorf("Descendants = %+v", desc)
	}
	if CountPath(files, "a.txt") != 1 {
		t.Errorf("CountPath = %d", CountPath(files, "a.txt"))
	}
	if f, ok := FindByID(files, "2"); !ok || f.Name != "school" {
		t.Errorf("FindByID = %+v, %v", f, ok)
	}
	if _, ok := FindByPath(files, "work"); ok {
		t.Error("FindByPath found a missing entry")
	}
}
