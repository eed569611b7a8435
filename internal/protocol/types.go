package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// SessionCookie is the HTTP-only cookie that carries the session token.
const SessionCookie = "jwt"

// HealthService is the grpc health service name chatd reports on.
const HealthService = "chatsync"

// Identity is the authenticated user as returned by the identity service.
type Identity struct {
	ID         string    `json:"id"`
	FullName   string    `json:"fullName"`
	Email      string    `json:"email"`
	ProfilePic string    `json:"profilePic,omitempty"`
	CreatedAt  time.Time `json:"createdAt,omitzero"`
}

// Contact is a user the current identity can message.
type Contact struct {
	ID         string `json:"id"`
	FullName   string `json:"fullName"`
	ProfilePic string `json:"profilePic,omitempty"`
}

// Message is a direct message between two identities. Messages are immutable
// once the service has assigned ID and CreatedAt.
type Message struct {
	// ID is opaque. A numeric id on the wire decodes to its decimal text.
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text"`
	Image      string    `json:"image,omitempty"`
	CreatedAt  time.Time `json:"createdAt,omitzero"`
}

// UnmarshalJSON accepts the id as a string or a number.
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var wire struct {
		plain
		ID looseID `json:"id"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*m = Message(wire.plain)
	m.ID = string(wire.ID)
	return nil
}

type looseID string

func (id *looseID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = looseID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("message id %s: not a string or number", data)
	}
	*id = looseID(n.String())
	return nil
}

// SignUpRequest is the body of POST /auth/signup.
type SignUpRequest struct {
	FullName string `json:"fullName" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LogInRequest is the body of POST /auth/login.
type LogInRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UpdateProfileRequest carries the partial identity fields to change.
// Empty fields are left untouched by the service.
type UpdateProfileRequest struct {
	FullName   string `json:"fullName,omitempty"`
	Email      string `json:"email,omitempty"`
	Password   string `json:"password,omitempty"`
	ProfilePic string `json:"profilePic,omitempty"`
}

// IsEmpty reports whether the request changes nothing.
func (r UpdateProfileRequest) IsEmpty() bool {
	return r == UpdateProfileRequest{}
}

// SendRequest is the body of POST /messages/send/{peerId}. The text travels
// as both content and text so either field name is understood.
type SendRequest struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r SendRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Content string `json:"content"`
		Text    string `json:"text"`
		Image   string `json:"image,omitempty"`
	}{r.Text, r.Text, r.Image})
}

// UnmarshalJSON reads content, falling back to text.
func (r *SendRequest) UnmarshalJSON(data []byte) error {
	var wire struct {
		Content string `json:"content"`
		Text    string `json:"text"`
		Image   string `json:"image"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	r.Text, r.Image = wire.Content, wire.Image
	if r.Text == "" {
		r.Text = wire.Text
	}
	return nil
}

// ErrorBody is the JSON shape of every non-2xx service response.
type ErrorBody struct {
	Message string `json:"message"`
}
