package sheet

type WriteStatus int

const (
	WriteAccepted WriteStatus = iota + 1
	WriteTransportFailed
)

func (s WriteStatus) String() string {
	switch s {
	case WriteAccepted:
		return "accepted"
	case WriteTransportFailed:
		return "transport_failed"
	default:
		return "unknown"
	}
}

// WriteResult is the only feedback a write gets: the endpoint's response body
// is opaque, so server-side rejections look the same as Accepted.
type WriteResult struct {
	Action string
	Status WriteStatus
	Err    error
}

func (r WriteResult) Accepted() bool {
	return r.Status == WriteAccepted
}

// Failure returns nil for accepted writes and the transport error otherwise.
func (r WriteResult) Failure() error {
	if r.Accepted() {
		return nil
	}
	return r.Err
}

func transportFailed(action string, err error) WriteResult {
	return WriteResult{Action: action, Status: WriteTransportFailed, Err: err}
}
