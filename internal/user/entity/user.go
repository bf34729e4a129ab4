package entity

// Account is a row of the users_and_admins table. Users and admins share the
// table; IsAdmin is the tier flag and IsActive the soft-delete flag.
type Account struct {
	ID             int64  `db:"id" json:"id"`
	IsAdmin        bool   `db:"is_admin" json:"is_admin"`
	FullName       string `db:"full_name" json:"full_name"`
	Email          string `db:"email" json:"email"`
	HashedPassword string `db:"hashed_password" json:"-"`
	IsActive       bool   `db:"is_active" json:"is_active"`
}

// Identity is the tuple a guarded mutation re-checks before touching a row,
// so a stale or partial client identity cannot act on another account that
// merely shares an id.
type Identity struct {
	ID       int64
	IsAdmin  bool
	FullName string
	Email    string
}

func (a Account) Identity() Identity {
	return Identity{ID: a.ID, IsAdmin: a.IsAdmin, FullName: a.FullName, Email: a.Email}
}

// PublicView is what an account owner sees about themselves.
type PublicView struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}
