package entity

type User struct {
	Base
	Email         string  `db:"email"`
	FullName      *string `db:"full_name"`
	PasswordHash  *string `db:"password_hash"`
	GoogleID      *string `db:"google_id"`
	EmailVerified bool    `db:"email_verified"`
}

func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

func (u *User) DisplayName() string {
	if u.FullName != nil && *u.FullName != "" {
		return *u.FullName
	}
	return u.Email
}
