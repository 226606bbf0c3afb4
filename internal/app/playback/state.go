// Package playback provides the single-track playback controller.
package playback

// State represents the playback state.
type State int

const (
	StateIdle    State = iota // No song selected
	StatePaused               // Song loaded, not playing
	StatePlaying              // Song loaded, playing or play requested
	StateErrored              // Last play request failed; retry with Play or Resume
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}
