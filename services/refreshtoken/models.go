package refreshtoken

import (
	"time"
)

// RefreshToken is the persisted half of a session. The signed token string is
// stored as its sha256 so a database leak does not expose usable tokens; the
// unique index on the hash is what makes delete-then-insert rotation safe
// under concurrent requests.
type RefreshToken struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	MemberID  uint      `json:"member_id" gorm:"not null;index"`
	TokenHash string    `json:"-" gorm:"uniqueIndex;size:64;not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null;index"`
	CreatedAt time.Time `json:"created_at"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}
