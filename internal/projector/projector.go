// Package projector derives client-facing state transitions from room
// snapshots. Connections receive full snapshots; the projector compares each
// snapshot against the last one it applied and reports only what actually
// changed, so a client can react to edges instead of re-rendering on every
// publish.
package projector

import "github.com/kita-live/kita-api/internal/models"

// Kind identifies a single observable state change.
type Kind string

const (
	AIEnabled      Kind = "ai_enabled"
	AIDisabled     Kind = "ai_disabled"
	ModelChanged   Kind = "model_changed"
	PollOpened     Kind = "poll_opened"
	PollUpdated    Kind = "poll_updated"
	PollClosed     Kind = "poll_closed"
	ContentChanged Kind = "content_changed"
	PromptChanged  Kind = "prompt_changed"
)

// Transition is one change extracted from a snapshot, with the payload a
// client needs to react to it.
type Transition struct {
	Kind    Kind           `json:"kind"`
	Model   models.AIModel `json:"model,omitempty"`
	Poll    *models.Poll   `json:"poll,omitempty"`
	URL     string         `json:"url,omitempty"`
	Payload string         `json:"payload,omitempty"`
}

// State is the last applied snapshot for one connection. The zero value is a
// blank slate: the first Apply reports everything currently active.
type State struct {
	initialized bool
	aiActive    bool
	aiModel     models.AIModel
	pollID      string
	pollActive  bool
	pollCount   int
	commandURL  string
	promptID    string
}

// Apply folds a fresh settings snapshot into the state and returns the
// transitions it produced. Applying the same snapshot twice yields nothing
// the second time.
func (s *State) Apply(settings models.RoomSettings) []Transition {
	var out []Transition

	first := !s.initialized
	s.initialized = true

	if settings.AIActive != s.aiActive || first {
		s.aiActive = settings.AIActive
		if settings.AIActive {
			out = append(out, Transition{Kind: AIEnabled})
		} else if !first {
			out = append(out, Transition{Kind: AIDisabled})
		}
	}

	if settings.AIModel != "" && (settings.AIModel != s.aiModel) {
		s.aiModel = settings.AIModel
		if !first {
			out = append(out, Transition{Kind: ModelChanged, Model: settings.AIModel})
		}
	}

	out = append(out, s.applyPoll(settings.CurrentPoll)...)

	if cmd := settings.CurrentCommand; cmd != nil && cmd.Command == models.CommandLoadContent {
		if url := cmd.URL(); url != "" && url != s.commandURL {
			s.commandURL = url
			out = append(out, Transition{Kind: ContentChanged, URL: url})
		}
	}

	if settings.ActivePromptID != s.promptID {
		s.promptID = settings.ActivePromptID
		if !first {
			out = append(out, Transition{Kind: PromptChanged, Payload: settings.ActivePromptID})
		}
	}

	return out
}

func (s *State) applyPoll(poll *models.Poll) []Transition {
	if poll == nil {
		// A snapshot without a poll closes whatever was open.
		if s.pollActive {
			s.pollActive = false
			s.pollID = ""
			return []Transition{{Kind: PollClosed}}
		}
		return nil
	}

	switch {
	case poll.IsActive && (!s.pollActive || poll.ID != s.pollID):
		s.pollID = poll.ID
		s.pollActive = true
		s.pollCount = len(poll.Responses)
		p := *poll
		return []Transition{{Kind: PollOpened, Poll: &p}}
	case poll.IsActive && poll.ID == s.pollID && len(poll.Responses) != s.pollCount:
		// Same poll, new responses. Teachers watch this for live tallies.
		s.pollCount = len(poll.Responses)
		p := *poll
		return []Transition{{Kind: PollUpdated, Poll: &p}}
	case !poll.IsActive && s.pollActive:
		s.pollActive = false
		p := *poll
		return []Transition{{Kind: PollClosed, Poll: &p}}
	default:
		return nil
	}
}
