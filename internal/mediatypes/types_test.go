package mediatypes

import "testing"

func TestGetFileType(t *testing.T) {
	if got := GetFileType(".jpg"); got != FileTypeImage {
		t.Errorf("GetFileType(.jpg) = %s, want image", got)
	}
	if got := GetFileType(".mkv"); got != FileTypeVideo {
		t.Errorf("GetFileType(.mkv) = %s, want video", got)
	}
	if got := GetFileType(".pdf"); got != FileTypeOther {
		t.Errorf("GetFileType(.pdf) = %s, want other", got)
	}
	if got := GetFileType(""); got != FileTypeOther {
		t.Errorf("GetFileType(\"\") = %s, want other", got)
	}
}

func TestGetMimeType(t *testing.T) {
	if got := GetMimeType(".png"); got != "image/png" {
		t.Errorf("GetMimeType(.png) = %s", got)
	}
	if got := GetMimeType(".xyz"); got != "application/octet-stream" {
		t.Errorf("GetMimeType(.xyz) = %s, want octet-stream fallback", got)
	}
}
