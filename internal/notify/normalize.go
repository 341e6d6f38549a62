// Package notify turns free-form push payloads into desktop notifications and
// routes clicks back into the app. Payload shape varies by server version and
// notification kind, so extraction is lookup-order based rather than schema
// based: the first matching field wins and anything unreadable degrades to a
// generic notification instead of an error.
package notify

import (
	"github.com/tidwall/gjson"
)

// Defaults when the payload carries no usable text.
const (
	DefaultTitle = "Koinonia"
	DefaultBody  = "You have a new notification"
)

// CelebrationClickAction marks celebration notifications.
const CelebrationClickAction = "CELEBRATION_NOTIFICATION_CLICK"

// celebrationPath is the navigation target for celebration notifications
// that don't carry their own URL.
const celebrationPath = "/celebration"

// TargetKind classifies where a notification click should navigate.
type TargetKind int

// Target kinds
const (
	TargetNone TargetKind = iota
	TargetChatRoom
	TargetCelebration
)

func (k TargetKind) String() string {
	switch k {
	case TargetChatRoom:
		return "chat_room"
	case TargetCelebration:
		return "celebration"
	default:
		return "none"
	}
}

// Envelope is a normalized notification ready for display and routing.
type Envelope struct {
	Title      string
	Body       string
	Kind       TargetKind
	ChatRoomID string
	TargetURL  string
}

// chatRoomKeys is the field lookup order for the chat-room id. Server
// versions disagree on the casing; all of them remain in the wild.
var chatRoomKeys = []string{"chatRoomID", "chatRoomId", "roomId", "chat_id"}

// firstString returns the first non-empty string among the given paths.
// The "data" object is the push payload proper and takes precedence; the top
// level is the fallback for servers that flatten the fields.
func firstString(payload []byte, paths ...string) string {
	for _, p := range paths {
		if v := gjson.GetBytes(payload, "data."+p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	for _, p := range paths {
		if v := gjson.GetBytes(payload, p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

// Normalize extracts a display envelope from a raw push payload. serverURL is
// the base used to build navigation targets; bodyLimit caps the display body
// length in runes.
func Normalize(payload []byte, serverURL string, bodyLimit int) Envelope {
	env := Envelope{
		Title: DefaultTitle,
		Body:  DefaultBody,
	}

	if title := firstString(payload, "title", "notification.title"); title != "" {
		env.Title = title
	}
	if body := firstString(payload, "body", "notification.body"); body != "" {
		env.Body = body
	}
	env.Body = Truncate(env.Body, bodyLimit)

	if firstString(payload, "click_action") == CelebrationClickAction {
		env.Kind = TargetCelebration
		if u := firstString(payload, "targetUrl"); u != "" {
			env.TargetURL = u
		} else {
			env.TargetURL = serverURL + celebrationPath
		}
		return env
	}

	if id := firstString(payload, chatRoomKeys...); id != "" {
		env.Kind = TargetChatRoom
		env.ChatRoomID = id
		env.TargetURL = serverURL + "/chat/" + id
	}

	return env
}

// Truncate cuts s to at most limit runes, replacing the tail with "..."
// when it doesn't fit. Limits small enough that the ellipsis wouldn't fit
// return the ellipsis alone.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 3 {
		return "..."
	}
	return string(runes[:limit-3]) + "..."
}
