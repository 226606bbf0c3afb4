package song

import "time"

// StoredObject describes an audio file in backend storage.
type StoredObject struct {
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
