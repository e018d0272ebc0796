package ws

import "errors"

const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypeTap         = "tap"
	TypeTapResult   = "tap:result"
	TypeError       = "error"
)

// Application close codes sent when authentication fails.
const (
	CloseTokenRequired = 4001
	CloseInvalidToken  = 4002
)

var ErrMalformedMessage = errors.New("malformed_message")

// InboundMessage is every frame a client may send.
type InboundMessage struct {
	Type      string `json:"type" validate:"required,oneof=subscribe unsubscribe tap"`
	RoundID   string `json:"roundId" validate:"required,max=64"`
	RequestID string `json:"requestId,omitempty" validate:"omitempty,max=64"`
}

// AckMessage confirms a subscribe or unsubscribe to the requesting client.
type AckMessage struct {
	Type      string `json:"type"`
	RoundID   string `json:"roundId"`
	RequestID string `json:"requestId,omitempty"`
}

type TapResultMessage struct {
	Type       string `json:"type"`
	RoundID    string `json:"roundId"`
	MyScore    int64  `json:"myScore"`
	TotalScore int64  `json:"totalScore"`
	Taps       int64  `json:"taps"`
	RequestID  string `json:"requestId,omitempty"`
}

type ErrorMessage struct {
	Type      string `json:"type"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RoundID   string `json:"roundId,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

var errorMessages = map[string]string{
	"malformed_message":       "malformed message",
	"round_not_found":         "round not found",
	"round_not_active":        "round is not active",
	"lock_acquisition_failed": "tap could not be applied, try again",
	"unknown_connection":      "connection is closing",
	"internal_error":          "tap could not be processed",
}

func newError(code, roundID, requestID string) ErrorMessage {
	msg, ok := errorMessages[code]
	if !ok {
		msg = errorMessages["internal_error"]
	}
	return ErrorMessage{Type: TypeError, Code: code, Message: msg, RoundID: roundID, RequestID: requestID}
}
