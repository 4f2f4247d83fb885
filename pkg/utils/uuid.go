package utils

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// GenerateUUID returns a random (v4) UUID string.
func GenerateUUID() string {
	return uuid.NewString()
}

// UniqueFilename returns "<uuid>.<ext>" keeping the extension of original.
// The extension is lowercased; a name without one yields a bare UUID.
func UniqueFilename(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	return GenerateUUID() + ext
}

// IsUUID reports whether s parses as a UUID.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
