package repo

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-blog-go/internal/credential"
	"github.com/ovaphlow/pitchfork/service-blog-go/internal/status"
	"github.com/ovaphlow/pitchfork/service-blog-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-blog-go/pkg/database"
)

// Result is the envelope every UserRepo operation returns.
type Result = status.Status[entity.Account]

const accountColumns = `id, is_admin, full_name, email, hashed_password, is_active`

// Every statement filters on is_active = TRUE; soft-deleted accounts are
// invisible to lookups and immune to mutations.
const (
	qFindByID          = `SELECT ` + accountColumns + ` FROM users_and_admins WHERE id = $1 AND is_admin = $2 AND is_active = TRUE`
	qFindByNameOrEmail = `SELECT ` + accountColumns + ` FROM users_and_admins WHERE (full_name = $1 OR email = $2) AND is_admin = $3 AND is_active = TRUE`
	qFindAllNonAdmin   = `SELECT ` + accountColumns + ` FROM users_and_admins WHERE is_admin = FALSE AND is_active = TRUE ORDER BY id`
	qFindByEmail       = `SELECT ` + accountColumns + ` FROM users_and_admins WHERE email = $1 AND is_active = TRUE`
	qCreate            = `INSERT INTO users_and_admins (is_admin, full_name, email, hashed_password) VALUES (FALSE, $1, $2, $3) RETURNING ` + accountColumns
	qUpdateEmail       = `UPDATE users_and_admins SET email = $1 WHERE id = $2 AND email = $3 AND is_active = TRUE`
	qUpdatePassword    = `UPDATE users_and_admins SET hashed_password = $1 WHERE id = $2 AND is_active = TRUE`
	qDelete            = `UPDATE users_and_admins SET is_active = FALSE WHERE id = $1 AND is_admin = FALSE AND full_name = $2 AND email = $3 AND is_active = TRUE`
	qUpgrade           = `UPDATE users_and_admins SET is_admin = TRUE WHERE id = $1 AND is_admin = $2 AND full_name = $3 AND email = $4 AND is_active = TRUE`
	qDowngrade         = `UPDATE users_and_admins SET is_admin = FALSE WHERE id = $1 AND is_admin = TRUE AND full_name = $2 AND email = $3 AND is_active = TRUE`
)

// UserRepo provides data access for the users_and_admins table. It holds no
// per-call state; every operation runs on its own connection.
type UserRepo struct {
	db     *sqlx.DB
	logger *zap.SugaredLogger
}

func NewUserRepo(db *sqlx.DB, logger *zap.SugaredLogger) *UserRepo {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &UserRepo{db: db, logger: logger}
}

// usersDDL stores email as citext so that the active-email index and every
// email predicate compare case-insensitively.
const usersDDL = `
CREATE EXTENSION IF NOT EXISTS citext;
CREATE TABLE IF NOT EXISTS users_and_admins (
  id BIGSERIAL PRIMARY KEY,
  is_admin BOOLEAN NOT NULL DEFAULT FALSE,
  full_name TEXT NOT NULL,
  email CITEXT NOT NULL,
  hashed_password TEXT NOT NULL,
  is_active BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_and_admins_active_email ON users_and_admins(email) WHERE is_active;
CREATE INDEX IF NOT EXISTS idx_users_and_admins_full_name ON users_and_admins(full_name);
`

// EnsureTable creates the users_and_admins table if not exists (idempotent).
// This is a convenience for early development; prefer migrations in production.
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, usersDDL)
	return err
}

func (r *UserRepo) selectRows(ctx context.Context, op, msg, q string, args ...any) Result {
	var rows []entity.Account
	err := database.WithConn(ctx, r.db, func(conn *sqlx.Conn) error {
		return conn.SelectContext(ctx, &rows, q, args...)
	})
	if err != nil {
		database.LogFailure(r.logger, op, err)
		return status.Storage[entity.Account]()
	}
	return status.Success(msg, rows)
}

func (r *UserRepo) exec(ctx context.Context, op, msg, q string, args ...any) Result {
	var affected int64
	err := database.WithConn(ctx, r.db, func(conn *sqlx.Conn) error {
		res, err := conn.ExecContext(ctx, q, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		database.LogFailure(r.logger, op, err)
		return status.Storage[entity.Account]()
	}
	return status.Mutated[entity.Account](msg, affected)
}

// FindByID returns the active account of tier with the given id.
func (r *UserRepo) FindByID(ctx context.Context, tier credential.Tier, id int64) Result {
	return r.selectRows(ctx, "user.find_by_id", "Rows found.", qFindByID, id, tier.IsAdmin())
}

// FindByFullNameOrEmail matches active accounts of tier by either field.
func (r *UserRepo) FindByFullNameOrEmail(ctx context.Context, tier credential.Tier, fullName, email string) Result {
	return r.selectRows(ctx, "user.find_by_name_or_email", "Rows found.", qFindByNameOrEmail, fullName, email, tier.IsAdmin())
}

func (r *UserRepo) FindAllNonAdmin(ctx context.Context) Result {
	return r.selectRows(ctx, "user.find_all", "Rows found.", qFindAllNonAdmin)
}

// FindByEmail looks across both tiers; used to keep active emails unique.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) Result {
	return r.selectRows(ctx, "user.find_by_email", "User looked up", qFindByEmail, email)
}

// Create inserts a non-admin, active account and returns the stored row.
func (r *UserRepo) Create(ctx context.Context, fullName, email, hashedPassword string) Result {
	return r.selectRows(ctx, "user.create", "User created", qCreate, fullName, email, hashedPassword)
}

// UpdateEmail changes the email only while the stored one still equals
// oldEmail; a stale oldEmail affects zero rows.
func (r *UserRepo) UpdateEmail(ctx context.Context, id int64, oldEmail, newEmail string) Result {
	return r.exec(ctx, "user.update_email", "User email updated", qUpdateEmail, newEmail, id, oldEmail)
}

func (r *UserRepo) UpdatePassword(ctx context.Context, id int64, hashedPassword string) Result {
	return r.exec(ctx, "user.update_password", "password updated.", qUpdatePassword, hashedPassword, id)
}

// Delete soft-deletes a non-admin account matched by its full identity.
func (r *UserRepo) Delete(ctx context.Context, u entity.Identity) Result {
	msg := fmt.Sprintf("User %s (%s) deleted.", u.FullName, u.Email)
	return r.exec(ctx, "user.delete", msg, qDelete, u.ID, u.FullName, u.Email)
}

// UpgradeToAdmin flips the tier flag of the account matching u exactly.
func (r *UserRepo) UpgradeToAdmin(ctx context.Context, u entity.Identity) Result {
	msg := fmt.Sprintf("User %s (%s) upgraded to admin.", u.FullName, u.Email)
	return r.exec(ctx, "user.upgrade", msg, qUpgrade, u.ID, u.IsAdmin, u.FullName, u.Email)
}

// DowngradeToUser flips an admin matching (id, full_name, email) back to user.
func (r *UserRepo) DowngradeToUser(ctx context.Context, id int64, fullName, email string) Result {
	msg := fmt.Sprintf("User %s (%s) was downgraded successfully.", fullName, email)
	return r.exec(ctx, "user.downgrade", msg, qDowngrade, id, fullName, email)
}
