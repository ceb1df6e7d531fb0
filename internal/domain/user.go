package domain

import "time"

// User is an account in the system. HashedPassword is never serialized.
type User struct {
	ID             int64     `db:"id"              json:"id"`
	Username       string    `db:"username"        json:"username"`
	HashedPassword string    `db:"hashed_password" json:"-"`
	IsAdmin        bool      `db:"is_admin"        json:"is_admin"`
	CreatedAt      time.Time `db:"created_at"      json:"created_at"`
}
