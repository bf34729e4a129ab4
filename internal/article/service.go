package article

import (
	"context"
	"errors"
	"time"

	"github.com/ovaphlow/pitchfork/service-blog-go/internal/article/entity"
	"github.com/ovaphlow/pitchfork/service-blog-go/internal/article/interval"
	articlerepo "github.com/ovaphlow/pitchfork/service-blog-go/internal/article/repo"
	"github.com/ovaphlow/pitchfork/service-blog-go/internal/status"
)

// Store is the article repository surface the service depends on.
type Store interface {
	FindNewest(ctx context.Context) articlerepo.Result
	FindByID(ctx context.Context, id int64) articlerepo.Result
	FindByIDs(ctx context.Context, ids []int64) articlerepo.Result
	FindByOwnerFullName(ctx context.Context, fullName string) articlerepo.Result
	FindByTitle(ctx context.Context, title string) articlerepo.Result
	FindByCategory(ctx context.Context, category string) articlerepo.Result
	FindByOwnerAndCategory(ctx context.Context, fullName, category string) articlerepo.Result
	FindByTitleAndCategory(ctx context.Context, title, category string) articlerepo.Result
	FindRandomInRange(ctx context.Context, from, to time.Time) articlerepo.Result
	Create(ctx context.Context, userID int64, title string, content []string, category string) articlerepo.Result
	Update(ctx context.Context, id int64, title, category string, content []string) articlerepo.Result
	Delete(ctx context.Context, id int64) articlerepo.Result
	CountVisits(ctx context.Context, articleID int64) status.Status[entity.VisitCount]
}

var (
	ErrStorage         = errors.New("storage failure")
	ErrArticleNotFound = errors.New("article not found")
	ErrNotOwner        = errors.New("article belongs to another user")
)

type ArticleService struct {
	store Store
}

func NewArticleService(store Store) *ArticleService {
	return &ArticleService{store: store}
}

func one(res articlerepo.Result) (*entity.Article, error) {
	if !res.Succeeded() {
		return nil, ErrStorage
	}
	a, ok := res.First()
	if !ok {
		return nil, ErrArticleNotFound
	}
	return &a, nil
}

func many(res articlerepo.Result) ([]entity.Article, error) {
	if !res.Succeeded() {
		return nil, ErrStorage
	}
	return res.Rows, nil
}

func (s *ArticleService) Newest(ctx context.Context) (*entity.Article, error) {
	return one(s.store.FindNewest(ctx))
}

func (s *ArticleService) Get(ctx context.Context, id int64) (*entity.Article, error) {
	return one(s.store.FindByID(ctx, id))
}

func (s *ArticleService) GetMany(ctx context.Context, ids []int64) ([]entity.Article, error) {
	return many(s.store.FindByIDs(ctx, ids))
}

func (s *ArticleService) ByOwner(ctx context.Context, fullName string) ([]entity.Article, error) {
	return many(s.store.FindByOwnerFullName(ctx, fullName))
}

func (s *ArticleService) ByTitle(ctx context.Context, title string) ([]entity.Article, error) {
	return many(s.store.FindByTitle(ctx, title))
}

func (s *ArticleService) ByCategory(ctx context.Context, category string) ([]entity.Article, error) {
	return many(s.store.FindByCategory(ctx, category))
}

func (s *ArticleService) ByOwnerAndCategory(ctx context.Context, fullName, category string) ([]entity.Article, error) {
	return many(s.store.FindByOwnerAndCategory(ctx, fullName, category))
}

func (s *ArticleService) ByTitleAndCategory(ctx context.Context, title, category string) ([]entity.Article, error) {
	return many(s.store.FindByTitleAndCategory(ctx, title, category))
}

// Random picks one article created within the UTC days spanned by from..to.
func (s *ArticleService) Random(ctx context.Context, from, to time.Time) (*entity.Article, error) {
	res := s.store.FindRandomInRange(ctx, from, to)
	if res.Code == status.InvalidInput {
		return nil, interval.ErrBadDateRange
	}
	return one(res)
}

func (s *ArticleService) Publish(ctx context.Context, userID int64, title string, content []string, category string) (*entity.Article, error) {
	return one(s.store.Create(ctx, userID, title, content, category))
}

// owned loads article id and checks it belongs to userID. It does not count
// as a view.
func (s *ArticleService) owned(ctx context.Context, userID, id int64) error {
	a, err := one(s.store.FindByIDs(ctx, []int64{id}))
	if err != nil {
		return err
	}
	if a.UserID != userID {
		return ErrNotOwner
	}
	return nil
}

// Edit overwrites an article owned by userID.
func (s *ArticleService) Edit(ctx context.Context, userID, id int64, title, category string, content []string) (string, error) {
	if err := s.owned(ctx, userID, id); err != nil {
		return "", err
	}
	res := s.store.Update(ctx, id, title, category, content)
	if !res.Succeeded() {
		return "", ErrStorage
	}
	if res.Affected == 0 {
		return "", ErrArticleNotFound
	}
	return res.Message, nil
}

// Remove deletes an article owned by userID.
func (s *ArticleService) Remove(ctx context.Context, userID, id int64) (string, error) {
	if err := s.owned(ctx, userID, id); err != nil {
		return "", err
	}
	res := s.store.Delete(ctx, id)
	if !res.Succeeded() {
		return "", ErrStorage
	}
	if res.Affected == 0 {
		return "", ErrArticleNotFound
	}
	return res.Message, nil
}

func (s *ArticleService) Visits(ctx context.Context, id int64) (entity.VisitCount, error) {
	res := s.store.CountVisits(ctx, id)
	if !res.Succeeded() {
		return entity.VisitCount{}, ErrStorage
	}
	v, _ := res.First()
	return v, nil
}
