package signaling

import (
	"strings"

	"github.com/goccy/go-json"
)

// SessionPathPrefix is the request path prefix of the relay,
// the rest of the path is the session id.
const SessionPathPrefix = "/v1/ooo/"

// Message types. The relay itself only ever sends StartSession,
// the rest is what peers exchange through it.
const (
	StartSession = "start_session"
	Offer        = "offer"
	Answer       = "answer"
)

// Message is the envelope peers use for negotiation.
type Message struct {
	Type string `json:"type"`
	Sdp  string `json:"sdp,omitempty"`
}

var startSessionMessage = mustMarshal(Message{Type: StartSession})

// SessionID extracts the session id from a request path.
// Empty id is a valid one.
func SessionID(path string) (string, bool) {
	if !strings.HasPrefix(path, SessionPathPrefix) {
		return "", false
	}
	return strings.TrimPrefix(path, SessionPathPrefix), true
}

// ParseMessage decodes the envelope of a relayed message,
// anything that is not a JSON object ends up with an empty type.
func ParseMessage(data []byte) Message {
	var m Message
	_ = json.Unmarshal(data, &m)
	return m
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
