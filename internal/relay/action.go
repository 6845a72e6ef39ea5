package relay

import "strings"

// Action is the operation the relay asks permission for.
type Action int

// Relay actions. Anything the relay sends that is not read, playback or
// publish (api, metrics, pprof) is ActionOther.
const (
	ActionOther Action = iota
	ActionRead
	ActionPlayback
	ActionPublish
)

// ParseAction maps the relay's action string onto an Action. Matching is
// case-insensitive so a capitalised "Publish" is still gated.
func ParseAction(s string) Action {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "read":
		return ActionRead
	case "playback":
		return ActionPlayback
	case "publish":
		return ActionPublish
	default:
		return ActionOther
	}
}

// String returns the relay's name for the action.
func (a Action) String() string {
	switch a {
	case ActionRead:
		return "read"
	case ActionPlayback:
		return "playback"
	case ActionPublish:
		return "publish"
	default:
		return "other"
	}
}
