package notify

import (
	"errors"
	"strings"
)

// UserFacing is implemented by errors that carry text meant for the user,
// such as the message field of a service error response.
type UserFacing interface {
	UserMessage() string
}

// Message picks the text to show for err: the first user-facing message in
// its chain, else fallback.
func Message(err error, fallback string) string {
	var uf UserFacing
	if errors.As(err, &uf) {
		if msg := strings.TrimSpace(uf.UserMessage()); msg != "" {
			return msg
		}
	}
	return fallback
}
