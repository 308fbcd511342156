package models

import "time"

// RedactedPassword replaces the password hash on every record handed back to a caller.
const RedactedPassword = "*******"

// AnonymousDisplayName is used when an author has no display name on record.
const AnonymousDisplayName = "Anonymous"

type Account struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Username     string    `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"password"`
	DisplayName  string    `json:"displayName"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Redacted returns a copy with the password hash masked.
func (a Account) Redacted() Account {
	a.PasswordHash = RedactedPassword
	return a
}

// DisplayNameOrDefault falls back to AnonymousDisplayName.
func (a Account) DisplayNameOrDefault() string {
	if a.DisplayName == "" {
		return AnonymousDisplayName
	}
	return a.DisplayName
}

type ChatMessage struct {
	// Seq is the insertion sequence; it defines list order in every store.
	Seq         uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	ID          string    `gorm:"uniqueIndex;size:36;not null" json:"id"`
	Author      string    `gorm:"index;not null" json:"author"`
	Text        string    `gorm:"type:text;not null" json:"text"`
	DisplayName string    `json:"displayName"`
	Timestamp   time.Time `gorm:"not null" json:"timestamp"`
}
