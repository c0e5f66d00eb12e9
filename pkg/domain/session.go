package domain

import (
	"fmt"
	"strings"
	"time"
)

// UploadedImageRecord describes one uploaded photo occupying a slot.
type UploadedImageRecord struct {
	ImageID    string    `json:"image_id"`
	ImageURL   string    `json:"image_url"`
	ImageType  PhotoSlot `json:"image_type"`
	UploadedAt time.Time `json:"uploaded_at"`
	// FoxID is the submitter identity captured at upload time. May be empty
	// when no authenticated identity existed yet.
	FoxID string `json:"fox_id,omitempty"`
}

// UploadSession is the slot-to-image mapping for one open upload flow.
// Keys are present only for filled slots.
type UploadSession struct {
	ID     string                            `json:"session_id"`
	Images map[PhotoSlot]UploadedImageRecord `json:"images"`
}

func NewUploadSession(id string) *UploadSession {
	return &UploadSession{ID: id, Images: make(map[PhotoSlot]UploadedImageRecord)}
}

// Put records rec under its slot, overwriting any previous record there.
func (s *UploadSession) Put(rec UploadedImageRecord) {
	if s.Images == nil {
		s.Images = make(map[PhotoSlot]UploadedImageRecord)
	}
	s.Images[rec.ImageType] = rec
}

// Remove deletes the record for slot if present; no-op otherwise.
func (s *UploadSession) Remove(slot PhotoSlot) {
	delete(s.Images, slot)
}

// Get returns the record for slot and whether it is filled.
func (s *UploadSession) Get(slot PhotoSlot) (UploadedImageRecord, bool) {
	rec, ok := s.Images[slot]
	return rec, ok
}

// FilledCount is the number of distinct slots currently filled.
func (s *UploadSession) FilledCount() int {
	return len(s.Images)
}

// IsComplete reports whether all seven required slots are filled.
func (s *UploadSession) IsComplete() bool {
	return len(s.MissingSlots()) == 0
}

// MissingSlots returns the required slots not yet filled, in canonical order.
func (s *UploadSession) MissingSlots() []PhotoSlot {
	var missing []PhotoSlot
	for _, slot := range RequiredSlots() {
		if _, ok := s.Images[slot]; !ok {
			missing = append(missing, slot)
		}
	}
	return missing
}

// MissingSlotsError is the validation failure returned when a submission is
// attempted on an incomplete session. It is reported before any network
// activity takes place.
type MissingSlotsError struct {
	Slots []PhotoSlot
}

func (e *MissingSlotsError) Error() string {
	names := make([]string, len(e.Slots))
	for i, s := range e.Slots {
		names[i] = s.Title()
	}
	return fmt.Sprintf("missing required photos: %s", strings.Join(names, ", "))
}
