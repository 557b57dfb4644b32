package domain

// SendMessageCommand is the validated intent to create a message.
// Exactly one of CommunityID and RecipientID must be set.
type SendMessageCommand struct {
	CommunityID string
	RecipientID UserID
	Content     string
	Mentions    []UserID
	ReplyTo     string
	Priority    Priority
}

type ReactionCommand struct {
	MessageID string
	Emoji     string
}
