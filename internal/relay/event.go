package relay

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// Event names shared with the browser client.
const (
	EventJoin      = "join"
	EventJoined    = "joined"
	EventJoinError = "join-error"
	EventSystem    = "system"
	EventMessage   = "message"
	EventTyping    = "typing"
	EventUsers     = "users"

	EventOffer     = "webrtc-offer"
	EventAnswer    = "webrtc-answer"
	EventCandidate = "webrtc-candidate"
	EventEnd       = "webrtc-end"
)

// MaxTextLength is the number of characters kept from a chat message.
const MaxTextLength = 2000

// Envelope is one frame on the wire: a named event and its payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Joined acknowledges a successful join to the joiner.
type Joined struct {
	Username string `json:"username"`
	ID       string `json:"id"`
}

// JoinRejected tells a connection its join was refused.
type JoinRejected struct {
	Reason string `json:"reason"`
}

// ChatMessage is a chat line as delivered to participants.
type ChatMessage struct {
	Text      string `json:"text"`
	From      string `json:"from"`
	Timestamp int64  `json:"timestamp"`
}

// Typing is a typing indicator as delivered to participants.
type Typing struct {
	From     string `json:"from"`
	IsTyping bool   `json:"isTyping"`
}

type joinRequest struct {
	Name string `validate:"required"`
}

type inboundMessage struct {
	Text json.RawMessage `json:"text"`
}

// signalField maps a signaling event to the key its payload is carried under.
var signalField = map[string]string{
	EventOffer:     "offer",
	EventAnswer:    "answer",
	EventCandidate: "candidate",
	EventEnd:       "",
}

func encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// encodeSignal builds a signaling frame by hand so the payload bytes are
// copied exactly as received. json.Marshal would compact them.
func encodeSignal(event, from, field string, payload json.RawMessage) []byte {
	var buf bytes.Buffer
	buf.WriteString(`{"event":`)
	buf.WriteString(strconv.Quote(event))
	buf.WriteString(`,"data":{"from":`)
	fromJSON, _ := json.Marshal(from)
	buf.Write(fromJSON)
	if field != "" {
		buf.WriteString(`,`)
		buf.WriteString(strconv.Quote(field))
		buf.WriteString(`:`)
		if len(payload) == 0 {
			buf.WriteString("null")
		} else {
			buf.Write(payload)
		}
	}
	buf.WriteString(`}}`)
	return buf.Bytes()
}

// coerceText turns whatever the client put in "text" into a string.
func coerceText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case 't', 'f':
		return string(raw)
	case 'n', '{', '[':
		return ""
	default:
		f, err := strconv.ParseFloat(string(raw), 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return ""
		}
		return formatNumber(f)
	}
}

// formatNumber renders f the way a browser prints a number: shortest
// round-trip digits, plain notation between 1e-6 and 1e21.
func formatNumber(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}

	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		mantissa, exp, _ := strings.Cut(strconv.FormatFloat(f, 'e', -1, 64), "e")
		return mantissa + "e" + exp[:1] + strings.TrimLeft(exp[1:], "0")
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// truthy reports whether a JSON value counts as true for a typing flag.
func truthy(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	default:
		return true
	}
}

func truncate(s string, limit int) string {
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
