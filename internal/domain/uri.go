package domain

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

// URI2ID extracts the numeric id from a tracker item URI: the last path
// segment parsed as an integer.
func URI2ID(uri string) (int, error) {
	trimmed := strings.TrimSuffix(uri, "/")
	idx := strings.LastIndex(trimmed, "/")
	segment := trimmed
	if idx >= 0 {
		segment = trimmed[idx+1:]
	}
	id, err := strconv.Atoi(segment)
	if err != nil {
		return 0, fmt.Errorf("no numeric id in uri %q: %w", uri, err)
	}
	return id, nil
}

var imageExtensions = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "gif": true,
	"bmp": true, "webp": true, "svg": true,
}

// IsImageExtension reports whether the file name looks like an image.
func IsImageExtension(fileName string) bool {
	idx := strings.LastIndex(fileName, ".")
	if idx < 0 {
		return false
	}
	return imageExtensions[strings.ToLower(fileName[idx+1:])]
}

// UniqueFileName prefixes the original name so two attachments with the
// same name never collide in the attachment directory.
func UniqueFileName(fileName string) string {
	prefix := strconv.FormatInt(time.Now().UnixMilli(), 10) + strconv.Itoa(rand.Intn(1000))
	return prefix + "_" + fileName
}
