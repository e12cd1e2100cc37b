package domain

import "time"

type LogoutReason string

const (
	LogoutReasonUser         LogoutReason = "user"
	LogoutReasonTokenExpired LogoutReason = "token_expired"
	LogoutReasonAPIError     LogoutReason = "api_error"
)

// LogoutSignal tells every interested party that the session ended.
type LogoutSignal struct {
	Reason LogoutReason `json:"reason"`
	At     time.Time    `json:"at"`
}
