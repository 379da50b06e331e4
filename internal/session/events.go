package session

import (
	"github.com/rahulhooda929/Simple-FAQ-SDR/internal/lead"
	"github.com/rahulhooda929/Simple-FAQ-SDR/pkg/provider/live"
)

// EventKind discriminates the variants of [Event].
type EventKind string

const (
	// EventState reports a lifecycle transition. State is set, and Err
	// carries the fault when the new state is [StateError].
	EventState EventKind = "state"

	// EventTranscript reports one recognized utterance, user or agent.
	// Transcript is set.
	EventTranscript EventKind = "transcript"

	// EventLead reports that a tool call changed the lead record. Lead
	// holds the merged record and LeadChanged the JSON field names that
	// actually changed.
	EventLead EventKind = "lead"

	// EventLevel reports the microphone input level in [0, 1], once per
	// capture frame. Level is set.
	EventLevel EventKind = "level"

	// EventSpeaking reports the agent speaking indicator flipping. Speaking
	// is set.
	EventSpeaking EventKind = "speaking"
)

// Event is one observable session occurrence. Only the fields named by the
// Kind doc are meaningful; the rest hold their zero values.
//
// Events are delivered on a lossy stream (see [Session.Events]); consumers
// that need the authoritative current state should read [Session.State] and
// [Session.Lead] instead of reconstructing them from events.
type Event struct {
	Kind EventKind

	State State
	Err   error

	Transcript live.Transcript

	Lead        lead.Record
	LeadChanged []string

	Level float64

	Speaking bool
}
