package store

// User is a registered account.
type User struct {
	ID           string
	FullName     string
	Email        string
	PasswordHash string
	ProfilePic   string
	CreatedAt    int64 // unix millis
	UpdatedAt    int64
}

// Message is a stored direct message.
type Message struct {
	ID         string
	SenderID   string
	ReceiverID string
	Text       string
	Image      string
	CreatedAt  int64 // unix millis
}

// UserUpdate lists the profile fields to change. Nil fields are kept.
type UserUpdate struct {
	FullName     *string
	Email        *string
	PasswordHash *string
	ProfilePic   *string
}
