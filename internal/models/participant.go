package models

// ParticipantRole mirrors the roles the platform knows about.
type ParticipantRole string

const (
	RoleStudent    ParticipantRole = "student"
	RoleInstructor ParticipantRole = "instructor"
)

// Participant is a member of a conversation. Scope is the class or group
// the participant belongs to, used to narrow user search.
type Participant struct {
	Matricule   string          `db:"matricule" json:"matricule"`
	DisplayName string          `db:"display_name" json:"display_name"`
	Role        ParticipantRole `db:"role" json:"role"`
	Scope       string          `db:"scope" json:"scope,omitempty"`
	AvatarURL   string          `db:"avatar_url" json:"avatar_url"`
	Online      bool            `db:"online" json:"online"`
}

// ConversationDetail is the creation response: the conversation plus its
// initial roster.
type ConversationDetail struct {
	Conversation Conversation  `json:"conversation"`
	Participants []Participant `json:"participants"`
}
