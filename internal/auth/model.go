package auth

import "time"

type User struct {
	ID           int64
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the projection of User that may leave the service boundary.
type PublicUser struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

type LoginResult struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
	User             PublicUser
}
