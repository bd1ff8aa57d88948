package messaging

import "time"

// Conversation siempre es entre un owner y un cuidador; el par es único.
type Conversation struct {
	ID          string
	OwnerID     string
	CaregiverID string

	CreatedAt     time.Time
	LastMessageAt *time.Time
}

func (c Conversation) IsParticipant(userID string) bool {
	return userID != "" && (c.OwnerID == userID || c.CaregiverID == userID)
}

// Other devuelve el otro participante.
func (c Conversation) Other(userID string) string {
	if c.OwnerID == userID {
		return c.CaregiverID
	}
	return c.OwnerID
}

type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Body           string
	Redacted       bool

	CreatedAt time.Time
	ReadAt    *time.Time
}
