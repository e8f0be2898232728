package models

import "time"

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	// Password holds the hashed credential. It is empty for federated accounts.
	Password string `json:"-"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	// Facebook marks an account authenticated through an external identity
	// provider.
	Facebook  bool      `json:"facebook"`
	CreatedAt time.Time `json:"createdAt"`
}
