package database

import (
	"sort"
	"testing"
)

func TestNaturalSortKey(t *testing.T) {
	names := []string{"IMG10.jpg", "img2.jpg", "IMG1.jpg", "holiday.png", "Holiday2.png"}
	sort.Slice(names, func(i, j int) bool {
		return NaturalSortKey(names[i]) < NaturalSortKey(names[j])
	})

	want := []string{"holiday.png", "Holiday2.png", "IMG1.jpg", "img2.jpg", "IMG10.jpg"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("sorted order = %v, want %v", names, want)
		}
	}
}

func TestNaturalSortKeyCaseFolds(t *testing.T) {
	if NaturalSortKey("Photo.JPG") != NaturalSortKey("photo.jpg") {
		t.Error("sort keys differ for case variants of the same name")
	}
}

func TestNaturalSortKeyLeadingZeros(t *testing.T) {
	if NaturalSortKey("img007") != NaturalSortKey("img7") {
		t.Error("leading zeros should not affect numeric ordering")
	}
}

func TestIsRoot(t *testing.T) {
	root := DirectoryRecord{Path: ""}
	if !root.IsRoot() {
		t.Error("empty path record is the root")
	}
	child := DirectoryRecord{Path: "photos"}
	if child.IsRoot() {
		t.Error("non-empty path record is not the root")
	}
}
