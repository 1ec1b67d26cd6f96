package session

import "github.com/rs/zerolog/log"

// NoticeKind classifies a user-facing message.
type NoticeKind int

const (
	// NoticeValidation reports a locally rejected input; no transport call
	// was made.
	NoticeValidation NoticeKind = iota
	// NoticeJoinRejected reports a coordinator refusal or an expired
	// create/join request.
	NoticeJoinRejected
	// NoticeInfo reports an informational event.
	NoticeInfo
)

// Notice is a message for the surrounding UI.
type Notice struct {
	Kind    NoticeKind
	Message string
}

func (s *Session) notify(n Notice) {
	select {
	case s.notices <- n:
	default:
		log.Warn().Str("message", n.Message).Msg("notice buffer full, dropping notice")
	}
}
