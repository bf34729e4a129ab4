package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ovaphlow/pitchfork/service-blog-go/internal/credential"
	"github.com/ovaphlow/pitchfork/service-blog-go/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-blog-go/internal/user/repo"
)

// Store is the subset of the account repository the service needs.
type Store interface {
	FindByID(ctx context.Context, tier credential.Tier, id int64) userrepo.Result
	FindByFullNameOrEmail(ctx context.Context, tier credential.Tier, fullName, email string) userrepo.Result
	FindAllNonAdmin(ctx context.Context) userrepo.Result
	FindByEmail(ctx context.Context, email string) userrepo.Result
	Create(ctx context.Context, fullName, email, hashedPassword string) userrepo.Result
	UpdateEmail(ctx context.Context, id int64, oldEmail, newEmail string) userrepo.Result
	UpdatePassword(ctx context.Context, id int64, hashedPassword string) userrepo.Result
	Delete(ctx context.Context, u entity.Identity) userrepo.Result
	UpgradeToAdmin(ctx context.Context, u entity.Identity) userrepo.Result
	DowngradeToUser(ctx context.Context, id int64, fullName, email string) userrepo.Result
}

// TokenIssuer signs tokens with the secret of a tier.
type TokenIssuer interface {
	Issue(tier credential.Tier, claims credential.Claims) (string, error)
}

var (
	ErrStorage       = errors.New("storage failure")
	ErrUserExists    = errors.New("user already exists")
	ErrUserNotFound  = errors.New("user not found")
	ErrBadPassword   = errors.New("invalid password")
	ErrEmailNotFound = errors.New("email not found")
	ErrEmailTaken    = errors.New("email already in use")
	ErrEmailMismatch = errors.New("email does not belong to account")
	ErrAlreadyAdmin  = errors.New("user is already an admin")
	ErrAdminNotFound = errors.New("admin not found")
	ErrStaleIdentity = errors.New("identity does not match stored account")
	ErrTokenIssuance = errors.New("token issuance failed")
)

// UserService orchestrates the account flows over a Store.
type UserService struct {
	store  Store
	hasher credential.PasswordHasher
	tokens TokenIssuer
}

func NewUserService(store Store, hasher credential.PasswordHasher, tokens TokenIssuer) *UserService {
	if hasher == nil {
		hasher = credential.BcryptHasher{Cost: credential.DefaultCost}
	}
	return &UserService{store: store, hasher: hasher, tokens: tokens}
}

// Register creates a non-admin account after checking that neither the name
// nor the email is already held by an active user, and that no active
// account of any tier uses the email.
func (s *UserService) Register(ctx context.Context, fullName, email, password string) (*entity.Account, error) {
	found := s.store.FindByFullNameOrEmail(ctx, credential.TierUser, fullName, email)
	if !found.Succeeded() {
		return nil, ErrStorage
	}
	if len(found.Rows) > 0 {
		return nil, ErrUserExists
	}
	byEmail := s.store.FindByEmail(ctx, email)
	if !byEmail.Succeeded() {
		return nil, ErrStorage
	}
	if len(byEmail.Rows) > 0 {
		return nil, ErrUserExists
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	created := s.store.Create(ctx, fullName, email, hash)
	acc, ok := created.First()
	if !ok {
		return nil, ErrStorage
	}
	return &acc, nil
}

// Login authenticates against accounts of tier and returns a signed token.
func (s *UserService) Login(ctx context.Context, tier credential.Tier, fullName, email, password string) (string, *entity.Account, error) {
	found := s.store.FindByFullNameOrEmail(ctx, tier, fullName, email)
	if !found.Succeeded() {
		return "", nil, ErrStorage
	}
	if len(found.Rows) == 0 {
		return "", nil, ErrUserNotFound
	}
	acc := pick(found.Rows, fullName, email)
	if !s.hasher.Verify(password, acc.HashedPassword) {
		return "", nil, ErrBadPassword
	}
	token, err := s.tokens.Issue(tier, credential.Claims{
		ID:       acc.ID,
		IsAdmin:  acc.IsAdmin,
		FullName: acc.FullName,
		Email:    acc.Email,
	})
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrTokenIssuance, err)
	}
	return token, &acc, nil
}

// Active reports whether an active account of tier exists under id.
func (s *UserService) Active(ctx context.Context, tier credential.Tier, id int64) (bool, error) {
	found := s.store.FindByID(ctx, tier, id)
	if !found.Succeeded() {
		return false, ErrStorage
	}
	return len(found.Rows) > 0, nil
}

// pick prefers the row matching both name and email, then email, then the first.
func pick(rows []entity.Account, fullName, email string) entity.Account {
	for _, r := range rows {
		if r.FullName == fullName && strings.EqualFold(r.Email, email) {
			return r
		}
	}
	for _, r := range rows {
		if strings.EqualFold(r.Email, email) {
			return r
		}
	}
	return rows[0]
}

// ChangePassword verifies the current password before storing the new digest.
func (s *UserService) ChangePassword(ctx context.Context, tier credential.Tier, id int64, oldPassword, newPassword string) (string, error) {
	found := s.store.FindByID(ctx, tier, id)
	if !found.Succeeded() {
		return "", ErrStorage
	}
	acc, ok := found.First()
	if !ok {
		return "", ErrUserNotFound
	}
	if !s.hasher.Verify(oldPassword, acc.HashedPassword) {
		return "", ErrBadPassword
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	res := s.store.UpdatePassword(ctx, id, hash)
	if !res.Succeeded() {
		return "", ErrStorage
	}
	if res.Affected == 0 {
		return "", ErrUserNotFound
	}
	return "User " + res.Message, nil
}

// ChangeEmail swaps oldEmail for newEmail on account id, provided oldEmail
// is still the stored one.
func (s *UserService) ChangeEmail(ctx context.Context, id int64, oldEmail, newEmail string) (string, error) {
	found := s.store.FindByEmail(ctx, oldEmail)
	if !found.Succeeded() {
		return "", ErrStorage
	}
	if len(found.Rows) == 0 {
		return "", ErrEmailNotFound
	}
	if !strings.EqualFold(oldEmail, newEmail) {
		taken := s.store.FindByEmail(ctx, newEmail)
		if !taken.Succeeded() {
			return "", ErrStorage
		}
		if len(taken.Rows) > 0 {
			return "", ErrEmailTaken
		}
	}
	res := s.store.UpdateEmail(ctx, id, oldEmail, newEmail)
	if !res.Succeeded() {
		return "", ErrStorage
	}
	if res.Affected == 0 {
		return "", ErrEmailMismatch
	}
	return res.Message, nil
}

// DeleteSelf soft-deletes the non-admin account identified by id.
func (s *UserService) DeleteSelf(ctx context.Context, id int64) (string, error) {
	found := s.store.FindByID(ctx, credential.TierUser, id)
	if !found.Succeeded() {
		return "", ErrStorage
	}
	acc, ok := found.First()
	if !ok {
		return "", ErrUserNotFound
	}
	res := s.store.Delete(ctx, acc.Identity())
	if !res.Succeeded() {
		return "", ErrStorage
	}
	if res.Affected == 0 {
		return "", ErrUserNotFound
	}
	return res.Message, nil
}

// ListUsers returns every active non-admin account.
func (s *UserService) ListUsers(ctx context.Context) ([]entity.Account, error) {
	res := s.store.FindAllNonAdmin(ctx)
	if !res.Succeeded() {
		return nil, ErrStorage
	}
	return res.Rows, nil
}

// Upgrade promotes the active user id to admin.
func (s *UserService) Upgrade(ctx context.Context, id int64) (string, error) {
	found := s.store.FindByID(ctx, credential.TierUser, id)
	if !found.Succeeded() {
		return "", ErrStorage
	}
	acc, ok := found.First()
	if !ok {
		admin := s.store.FindByID(ctx, credential.TierAdmin, id)
		if !admin.Succeeded() {
			return "", ErrStorage
		}
		if a, ok := admin.First(); ok {
			return "", fmt.Errorf("%w: %s (%s)", ErrAlreadyAdmin, a.FullName, a.Email)
		}
		return "", ErrUserNotFound
	}
	res := s.store.UpgradeToAdmin(ctx, acc.Identity())
	if !res.Succeeded() {
		return "", ErrStorage
	}
	if res.Affected == 0 {
		return "", ErrStaleIdentity
	}
	return res.Message, nil
}

// Downgrade demotes the admin matching (id, fullName, email) to a user.
func (s *UserService) Downgrade(ctx context.Context, id int64, fullName, email string) (string, error) {
	found := s.store.FindByID(ctx, credential.TierAdmin, id)
	if !found.Succeeded() {
		return "", ErrStorage
	}
	if len(found.Rows) == 0 {
		return "", ErrAdminNotFound
	}
	res := s.store.DowngradeToUser(ctx, id, fullName, email)
	if !res.Succeeded() {
		return "", ErrStorage
	}
	if res.Affected == 0 {
		return "", ErrStaleIdentity
	}
	return res.Message, nil
}
