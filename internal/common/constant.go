package common

// TokenType is reported to clients alongside every issued access token.
const TokenType = "bearer"

// DefaultSessionTitle is assigned to sessions created without a title.
const DefaultSessionTitle = "New Chat Session"

// Sender roles of a chat message.
const (
	SenderUser = "user"
	SenderBot  = "bot"
)
