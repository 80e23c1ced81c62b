package models

/*
Tenant is a photographer's account. Every session, album, access code and
notification belongs to exactly one tenant.
*/
type Tenant struct {
	BaseModel

	Slug         string `db:"slug"`
	Name         string `db:"name"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
}
