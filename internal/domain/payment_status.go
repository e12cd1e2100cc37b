package domain

type CaptureStatus string

const (
	CaptureStatusPending   CaptureStatus = "PENDING"
	CaptureStatusCompleted CaptureStatus = "COMPLETED"
)

func (s CaptureStatus) IsCompleted() bool {
	return s == CaptureStatusCompleted
}

// String representation (for logging)
func (s CaptureStatus) String() string {
	if s == "" {
		return "UNKNOWN"
	}
	return string(s)
}
