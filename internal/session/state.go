package session

import "time"

// State is the view state derived from the controller fields.
type State int

const (
	Idle State = iota
	Ready
	Loading
	Failed
	Succeeded
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Ready:
		return "ready"
	case Loading:
		return "loading"
	case Failed:
		return "failed"
	case Succeeded:
		return "succeeded"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is a copy of the controller state taken under its lock.
type Snapshot struct {
	State      State     `json:"state"`
	FileName   string    `json:"file_name,omitempty"`
	MIMEType   string    `json:"mime_type,omitempty"`
	PreviewURL string    `json:"preview_url,omitempty"`
	Result     string    `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
	Loading    bool      `json:"loading"`
	CanTrigger bool      `json:"can_trigger"`
	UpdatedAt  time.Time `json:"updated_at"`
}
