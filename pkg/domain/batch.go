package domain

import "time"

// BatchImage is one image entry inside a submission batch. Every entry is
// stamped with the shared task/submitter/client/vehicle identifiers so the
// workflow can process images independently.
type BatchImage struct {
	ImageID    string    `json:"image_id"`
	ImageURL   string    `json:"image_url"`
	ImageType  PhotoSlot `json:"image_type"`
	UploadedAt time.Time `json:"uploaded_at"`
	TaskID     string    `json:"task_id"`
	FoxID      string    `json:"fox_id"`
	ClientID   string    `json:"client_id"`
	VehicleID  string    `json:"vehicle_id"`
}

// SubmissionBatch is the point-in-time snapshot of a complete session sent to
// the quality-check workflow. Immutable once dispatched.
type SubmissionBatch struct {
	TaskID    string       `json:"task_id"`
	FoxID     string       `json:"fox_id"`
	ClientID  string       `json:"client_id"`
	VehicleID string       `json:"vehicle_id"`
	Images    []BatchImage `json:"images"`
}

// BuildBatch snapshots a complete session into a batch. Images are ordered by
// the canonical slot order and each record is stamped with foxID, which is the
// resolved submitter identity (session records keep whatever identity was
// current at upload time; the batch always carries the submission-time one).
func BuildBatch(session *UploadSession, taskID, foxID, clientID, vehicleID string) SubmissionBatch {
	batch := SubmissionBatch{
		TaskID:    taskID,
		FoxID:     foxID,
		ClientID:  clientID,
		VehicleID: vehicleID,
	}
	for _, slot := range RequiredSlots() {
		rec, ok := session.Get(slot)
		if !ok {
			continue
		}
		batch.Images = append(batch.Images, BatchImage{
			ImageID:    rec.ImageID,
			ImageURL:   rec.ImageURL,
			ImageType:  rec.ImageType,
			UploadedAt: rec.UploadedAt,
			TaskID:     taskID,
			FoxID:      foxID,
			ClientID:   clientID,
			VehicleID:  vehicleID,
		})
	}
	return batch
}
