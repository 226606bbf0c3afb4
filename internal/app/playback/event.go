package playback

import (
	"time"

	"github.com/osa030/punjabibox/internal/domain/song"
)

// EventType represents a playback event type.
type EventType int

const (
	EventSongChanged  EventType = iota // A different song was selected
	EventStateChanged                  // Playback state changed
	EventSongEnded                     // Output reached the end of the current song
	EventError                         // A play request was rejected
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventSongChanged:
		return "song_changed"
	case EventStateChanged:
		return "state_changed"
	case EventSongEnded:
		return "song_ended"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type  EventType
	Song  *song.Song // Current song (nil when idle)
	State State
	Err   string // Set for EventError
}

// TrailEntry is one line of the recent-activity trail kept for diagnostics.
type TrailEntry struct {
	At      time.Time
	Message string
}
