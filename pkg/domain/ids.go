package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewHumanID builds the short operator-facing identifiers used for tasks and
// fox fallback IDs: PREFIX_YYYYMMDD_XXXX.
func NewHumanID(prefix string) string {
	date := time.Now().UTC().Format("20060102")
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return prefix + "_" + date + "_" + suffix
}

// NewTaskID returns a fresh task identifier.
func NewTaskID() string { return NewHumanID("TASK") }

// NewFoxID returns a fresh fallback submitter identifier, used only when no
// authenticated identity is available.
func NewFoxID() string { return NewHumanID("FOX") }

// NewImageID returns an opaque unique image identifier.
func NewImageID() string { return uuid.NewString() }
