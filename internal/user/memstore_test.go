package user

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ovaphlow/pitchfork/service-blog-go/internal/credential"
	"github.com/ovaphlow/pitchfork/service-blog-go/internal/status"
	"github.com/ovaphlow/pitchfork/service-blog-go/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-blog-go/internal/user/repo"
)

// memStore mirrors the filtering rules of the SQL repository in memory.
type memStore struct {
	mu     sync.Mutex
	rows   []entity.Account
	nextID int64
	broken bool
}

func newMemStore(seed ...entity.Account) *memStore {
	s := &memStore{nextID: 1}
	for _, a := range seed {
		if a.ID == 0 {
			a.ID = s.nextID
		}
		if a.ID >= s.nextID {
			s.nextID = a.ID + 1
		}
		s.rows = append(s.rows, a)
	}
	return s
}

func (s *memStore) filter(match func(a entity.Account) bool) userrepo.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return status.Storage[entity.Account]()
	}
	var out []entity.Account
	for _, a := range s.rows {
		if a.IsActive && match(a) {
			out = append(out, a)
		}
	}
	return status.Success("Rows found.", out)
}

func (s *memStore) update(msg string, match func(a entity.Account) bool, apply func(a *entity.Account)) userrepo.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return status.Storage[entity.Account]()
	}
	var n int64
	for i := range s.rows {
		if s.rows[i].IsActive && match(s.rows[i]) {
			apply(&s.rows[i])
			n++
		}
	}
	return status.Mutated[entity.Account](msg, n)
}

func (s *memStore) get(id int64) entity.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.rows {
		if a.ID == id {
			return a
		}
	}
	return entity.Account{}
}

func (s *memStore) FindByID(_ context.Context, tier credential.Tier, id int64) userrepo.Result {
	return s.filter(func(a entity.Account) bool { return a.ID == id && a.IsAdmin == tier.IsAdmin() })
}

func (s *memStore) FindByFullNameOrEmail(_ context.Context, tier credential.Tier, fullName, email string) userrepo.Result {
	return s.filter(func(a entity.Account) bool {
		return (a.FullName == fullName || strings.EqualFold(a.Email, email)) && a.IsAdmin == tier.IsAdmin()
	})
}

func (s *memStore) FindAllNonAdmin(_ context.Context) userrepo.Result {
	return s.filter(func(a entity.Account) bool { return !a.IsAdmin })
}

func (s *memStore) FindByEmail(_ context.Context, email string) userrepo.Result {
	return s.filter(func(a entity.Account) bool { return strings.EqualFold(a.Email, email) })
}

func (s *memStore) Create(_ context.Context, fullName, email, hashedPassword string) userrepo.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return status.Storage[entity.Account]()
	}
	a := entity.Account{ID: s.nextID, FullName: fullName, Email: email, HashedPassword: hashedPassword, IsActive: true}
	s.nextID++
	s.rows = append(s.rows, a)
	return status.Success("User created", []entity.Account{a})
}

func (s *memStore) UpdateEmail(_ context.Context, id int64, oldEmail, newEmail string) userrepo.Result {
	return s.update("User email updated",
		func(a entity.Account) bool { return a.ID == id && strings.EqualFold(a.Email, oldEmail) },
		func(a *entity.Account) { a.Email = newEmail })
}

func (s *memStore) UpdatePassword(_ context.Context, id int64, hashedPassword string) userrepo.Result {
	return s.update("password updated.",
		func(a entity.Account) bool { return a.ID == id },
		func(a *entity.Account) { a.HashedPassword = hashedPassword })
}

func (s *memStore) Delete(_ context.Context, u entity.Identity) userrepo.Result {
	return s.update(fmt.Sprintf("User %s (%s) deleted.", u.FullName, u.Email),
		func(a entity.Account) bool {
			return a.ID == u.ID && !a.IsAdmin && a.FullName == u.FullName && strings.EqualFold(a.Email, u.Email)
		},
		func(a *entity.Account) { a.IsActive = false })
}

func (s *memStore) UpgradeToAdmin(_ context.Context, u entity.Identity) userrepo.Result {
	return s.update(fmt.Sprintf("User %s (%s) upgraded to admin.", u.FullName, u.Email),
		func(a entity.Account) bool {
			return a.ID == u.ID && a.IsAdmin == u.IsAdmin && a.FullName == u.FullName && strings.EqualFold(a.Email, u.Email)
		},
		func(a *entity.Account) { a.IsAdmin = true })
}

func (s *memStore) DowngradeToUser(_ context.Context, id int64, fullName, email string) userrepo.Result {
	return s.update(fmt.Sprintf("User %s (%s) was downgraded successfully.", fullName, email),
		func(a entity.Account) bool {
			return a.ID == id && a.IsAdmin && a.FullName == fullName && strings.EqualFold(a.Email, email)
		},
		func(a *entity.Account) { a.IsAdmin = false })
}
