package app

import (
	"github.com/rahulhooda929/Simple-FAQ-SDR/internal/lead"
	"github.com/rahulhooda929/Simple-FAQ-SDR/internal/session"
)

// Wire messages pushed to the browser page over the bridge's text channel.
// The field names are part of the bridge protocol; the page switches on
// "type". The {"type":"flush"} message is emitted by the bridge itself when
// an interruption discards buffered playback.

// stateMessage mirrors a lifecycle transition. error is set when the new
// state is "error".
type stateMessage struct {
	Type  string `json:"type"`
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

// levelMessage carries the microphone input level in [0, 1], one per
// capture frame.
type levelMessage struct {
	Type  string  `json:"type"`
	Level float64 `json:"level"`
}

// speakingMessage flips the agent speaking indicator.
type speakingMessage struct {
	Type     string `json:"type"`
	Speaking bool   `json:"speaking"`
}

// transcriptMessage carries one recognised utterance. role is "user" or
// "agent".
type transcriptMessage struct {
	Type string `json:"type"`
	Role string `json:"role"`
	Text string `json:"text"`
}

// leadMessage carries the merged lead record after a tool call changed it,
// with the JSON field names that actually changed.
type leadMessage struct {
	Type    string      `json:"type"`
	Lead    lead.Record `json:"lead"`
	Changed []string    `json:"changed,omitempty"`
}

// wireMessage converts a session event to its bridge message, or nil for
// event kinds the page has no use for.
func wireMessage(ev session.Event) any {
	switch ev.Kind {
	case session.EventState:
		msg := stateMessage{Type: "state", State: ev.State.String()}
		if ev.Err != nil {
			msg.Error = ev.Err.Error()
		}
		return msg
	case session.EventLevel:
		return levelMessage{Type: "level", Level: ev.Level}
	case session.EventSpeaking:
		return speakingMessage{Type: "speaking", Speaking: ev.Speaking}
	case session.EventTranscript:
		return transcriptMessage{
			Type: "transcript",
			Role: ev.Transcript.Role,
			Text: ev.Transcript.Text,
		}
	case session.EventLead:
		return leadMessage{Type: "lead", Lead: ev.Lead, Changed: ev.LeadChanged}
	default:
		return nil
	}
}
