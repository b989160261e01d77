package models

import "github.com/uptrace/bun"

// Operator is a status-endpoint user with a bcrypt-hashed password.
type Operator struct {
	bun.BaseModel `bun:"table:operators,alias:op"`

	ID       int    `bun:"id,pk,autoincrement" json:"id"`
	Username string `bun:"username,notnull,unique" json:"username"`
	Password string `bun:"password,notnull" json:"-"`
}
