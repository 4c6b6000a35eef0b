// Package mediatypes classifies file extensions into coarse media types and
// MIME types. The classification drives thumbnail eligibility and listing
// metadata; every file is indexed regardless of type.
package mediatypes
