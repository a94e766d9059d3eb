package entity

import "github.com/google/uuid"

type Profile struct {
	Base
	UserID    uuid.UUID `db:"user_id"`
	FullName  *string   `db:"full_name"`
	AvatarURL *string   `db:"avatar_url"`
}
