package article

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-blog-go/internal/article/entity"
	"github.com/ovaphlow/pitchfork/service-blog-go/internal/article/interval"
	articlerepo "github.com/ovaphlow/pitchfork/service-blog-go/internal/article/repo"
	"github.com/ovaphlow/pitchfork/service-blog-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-blog-go/internal/credential"
	"github.com/ovaphlow/pitchfork/service-blog-go/internal/status"
	"github.com/ovaphlow/pitchfork/service-blog-go/internal/validation"
	"github.com/ovaphlow/pitchfork/service-blog-go/pkg/utilities"
)

// memStore keeps articles and visit counts in memory. Random picks the
// first article in range.
type memStore struct {
	mu       sync.Mutex
	articles []entity.Article
	visits   map[int64]int64
	nextID   int64
	now      time.Time
	broken   bool
}

func newMemStore(now time.Time, seed ...entity.Article) *memStore {
	s := &memStore{articles: seed, visits: map[int64]int64{}, nextID: 1, now: now}
	for _, a := range seed {
		if a.ID >= s.nextID {
			s.nextID = a.ID + 1
		}
	}
	return s
}

func (s *memStore) filter(match func(a entity.Article) bool) articlerepo.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return status.Storage[entity.Article]()
	}
	var out []entity.Article
	for _, a := range s.articles {
		if match(a) {
			out = append(out, a)
		}
	}
	return status.Success("Query run succeeded", out)
}

func (s *memStore) viewed(res articlerepo.Result) articlerepo.Result {
	if a, ok := res.First(); ok {
		s.mu.Lock()
		s.visits[a.ID]++
		s.mu.Unlock()
		res.Rows = res.Rows[:1]
	}
	return res
}

func (s *memStore) FindNewest(context.Context) articlerepo.Result {
	res := s.filter(func(entity.Article) bool { return true })
	if len(res.Rows) > 1 {
		newest := res.Rows[0]
		for _, a := range res.Rows[1:] {
			if a.Timestamp.After(newest.Timestamp) {
				newest = a
			}
		}
		res.Rows = []entity.Article{newest}
	}
	return s.viewed(res)
}

func (s *memStore) FindByID(_ context.Context, id int64) articlerepo.Result {
	return s.viewed(s.filter(func(a entity.Article) bool { return a.ID == id }))
}

func (s *memStore) FindByIDs(_ context.Context, ids []int64) articlerepo.Result {
	return s.filter(func(a entity.Article) bool {
		for _, id := range ids {
			if a.ID == id {
				return true
			}
		}
		return false
	})
}

func (s *memStore) FindByOwnerFullName(_ context.Context, fullName string) articlerepo.Result {
	return s.filter(func(a entity.Article) bool { return a.FullName == fullName })
}

func (s *memStore) FindByTitle(_ context.Context, title string) articlerepo.Result {
	return s.filter(func(a entity.Article) bool {
		return strings.Contains(strings.ToLower(a.Title), strings.ToLower(title))
	})
}

func (s *memStore) FindByCategory(_ context.Context, category string) articlerepo.Result {
	return s.filter(func(a entity.Article) bool { return a.Category == category })
}

func (s *memStore) FindByOwnerAndCategory(_ context.Context, fullName, category string) articlerepo.Result {
	return s.filter(func(a entity.Article) bool { return a.FullName == fullName && a.Category == category })
}

func (s *memStore) FindByTitleAndCategory(_ context.Context, title, category string) articlerepo.Result {
	return s.filter(func(a entity.Article) bool {
		return strings.Contains(strings.ToLower(a.Title), strings.ToLower(title)) && a.Category == category
	})
}

func (s *memStore) FindRandomInRange(_ context.Context, from, to time.Time) articlerepo.Result {
	if from.After(to) {
		return status.Failed[entity.Article](status.InvalidInput, interval.MsgBadDates)
	}
	lo, hi := interval.DayStart(from), interval.DayEnd(to)
	return s.viewed(s.filter(func(a entity.Article) bool {
		return !a.Timestamp.Before(lo) && !a.Timestamp.After(hi)
	}))
}

func (s *memStore) Create(_ context.Context, userID int64, title string, content []string, category string) articlerepo.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return status.Storage[entity.Article]()
	}
	a := entity.Article{ID: s.nextID, Timestamp: s.now, UserID: userID, Title: title,
		Content: entity.JoinParagraphs(content), Category: category}
	s.nextID++
	s.articles = append(s.articles, a)
	return status.Success("Article Added.", []entity.Article{a})
}

func (s *memStore) mutate(msg string, id int64, apply func(i int)) articlerepo.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return status.Storage[entity.Article]()
	}
	for i := range s.articles {
		if s.articles[i].ID == id {
			apply(i)
			return status.Mutated[entity.Article](msg, 1)
		}
	}
	return status.Mutated[entity.Article](msg, 0)
}

func (s *memStore) Update(_ context.Context, id int64, title, category string, content []string) articlerepo.Result {
	return s.mutate("Article updated.", id, func(i int) {
		s.articles[i].Title = title
		s.articles[i].Category = category
		s.articles[i].Content = entity.JoinParagraphs(content)
	})
}

func (s *memStore) Delete(_ context.Context, id int64) articlerepo.Result {
	return s.mutate("Article deleted.", id, func(i int) {
		s.articles = append(s.articles[:i], s.articles[i+1:]...)
		delete(s.visits, id)
	})
}

func (s *memStore) CountVisits(_ context.Context, id int64) status.Status[entity.VisitCount] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return status.Storage[entity.VisitCount]()
	}
	return status.Success("Query run succeeded", []entity.VisitCount{{ArticleID: id, Visits: s.visits[id]}})
}

var today = time.Date(2024, 1, 7, 12, 0, 0, 0, time.UTC)

// deleted lists user ids whose accounts no longer exist.
type deleted map[int64]bool

func (d deleted) Active(_ context.Context, _ credential.Tier, id int64) (bool, error) {
	return !d[id], nil
}

type testServer struct {
	mux     *http.ServeMux
	store   *memStore
	keys    *credential.Keyring
	deleted deleted
}

func newTestServer(t *testing.T, seed ...entity.Article) *testServer {
	t.Helper()
	keys, err := credential.NewKeyring(credential.KeyConfig{
		UserSecret: "user-secret", AdminSecret: "admin-secret",
		UserTTL: time.Hour, AdminTTL: time.Hour,
	})
	require.NoError(t, err)
	store := newMemStore(today, seed...)
	gone := deleted{}
	h := NewHandler(NewArticleService(store), validation.New(), auth.Sessions{Keys: keys, Accounts: gone}, zap.NewNop().Sugar())
	h.now = func() time.Time { return today }
	mux := http.NewServeMux()
	h.Routes(mux)
	return &testServer{mux: mux, store: store, keys: keys, deleted: gone}
}

func (s *testServer) tokenFor(t *testing.T, id int64) string {
	t.Helper()
	tok, err := s.keys.Issue(credential.TierUser, credential.Claims{ID: id, FullName: "Ann Lee", Email: "ann@x.com"})
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set(auth.TokenHeader, token)
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body utilities.MessageBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Message
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestCreateThenGetCountsVisit(t *testing.T) {
	s := newTestServer(t)
	tok := s.tokenFor(t, 1)

	rec := s.do(t, http.MethodPost, "/api/articles/new", tok,
		map[string]any{"title": "T", "content": []string{"a", "b"}, "category": "c"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[entity.Article](t, rec)
	assert.Equal(t, "<p>a</p><p>b</p>", created.Content)
	assert.Equal(t, int64(1), created.UserID)

	rec = s.do(t, http.MethodGet, "/api/articles/1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "T", decode[entity.Article](t, rec).Title)

	rec = s.do(t, http.MethodGet, "/api/articles/1/visits", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[entity.VisitCount](t, rec).Visits)
}

func TestCreate_RequiresUserAndValidPayload(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/articles/new", "", map[string]any{"title": "T"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/articles/new", s.tokenFor(t, 1),
		map[string]any{"title": "T", "content": []string{}, "category": "c"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, `"content" must contain at least 1 items`, message(t, rec))

	rec = s.do(t, http.MethodPost, "/api/articles/new", s.tokenFor(t, 1),
		map[string]any{"title": "T", "content": []string{"a"}, "category": "c", "user_id": 2})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, `"user_id" is not allowed`, message(t, rec))
	assert.Empty(t, s.store.articles)
}

func TestCreate_DeletedAccountIsRejected(t *testing.T) {
	s := newTestServer(t)
	tok := s.tokenFor(t, 1)
	s.deleted[1] = true

	rec := s.do(t, http.MethodPost, "/api/articles/new", tok,
		map[string]any{"title": "T", "content": []string{"a"}, "category": "c"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, auth.MsgNoAccount, message(t, rec))
	assert.Empty(t, s.store.articles)
}

func TestRandom(t *testing.T) {
	s := newTestServer(t,
		entity.Article{ID: 1, Timestamp: time.Date(2024, 1, 6, 9, 0, 0, 0, time.UTC), UserID: 1, Title: "Old"},
		entity.Article{ID: 2, Timestamp: today, UserID: 1, Title: "Today"},
	)

	rec := s.do(t, http.MethodGet, "/api/articles/random?from=2024-01-10&to=2024-01-05", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "The dates are incorrect", message(t, rec))

	rec = s.do(t, http.MethodGet, "/api/articles/random?from=yesterday&to=2024-01-05", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/articles/random?from=2024-01-06&to=2024-01-06", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Old", decode[entity.Article](t, rec).Title)

	// no bounds means today
	rec = s.do(t, http.MethodGet, "/api/articles/random", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Today", decode[entity.Article](t, rec).Title)

	rec = s.do(t, http.MethodGet, "/api/articles/random?from=2023-01-01&to=2023-01-02", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgNotFound, message(t, rec))
}

func TestNewestAndLookups(t *testing.T) {
	s := newTestServer(t,
		entity.Article{ID: 1, Timestamp: today.Add(-time.Hour), UserID: 1, Title: "Go tips", Category: "dev", FullName: "Ann Lee"},
		entity.Article{ID: 2, Timestamp: today, UserID: 2, Title: "Cooking", Category: "food", FullName: "Bob Ray"},
	)

	rec := s.do(t, http.MethodGet, "/api/articles/newest", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(2), decode[entity.Article](t, rec).ID)

	rec = s.do(t, http.MethodGet, "/api/articles/byUsername?full_name=Ann+Lee", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]entity.Article](t, rec), 1)

	rec = s.do(t, http.MethodGet, "/api/articles/byUsername?full_name=Al", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/articles/byTitle?title=go", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]entity.Article](t, rec), 1)

	rec = s.do(t, http.MethodGet, "/api/articles/byCategory?category=food", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Cooking", decode[[]entity.Article](t, rec)[0].Title)

	rec = s.do(t, http.MethodGet, "/api/articles/byCategory", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/articles/byUserFullNameAndCategory?full_name=Ann+Lee&category=dev", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]entity.Article](t, rec), 1)

	rec = s.do(t, http.MethodGet, "/api/articles/byUserFullNameAndCategory?full_name=Ann+Lee", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, `"category" is required`, message(t, rec))

	rec = s.do(t, http.MethodGet, "/api/articles/byTitleAndCategory?title=cook&category=food", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]entity.Article](t, rec), 1)

	rec = s.do(t, http.MethodGet, "/api/articles/?ids=1,2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]entity.Article](t, rec), 2)

	rec = s.do(t, http.MethodGet, "/api/articles/?ids=x", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// listings are not views
	assert.Zero(t, s.store.visits[1])
}

func TestGet_BadAndMissingID(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/articles/-1", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgBadID, message(t, rec))

	rec = s.do(t, http.MethodGet, "/api/articles/42", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgNotFound, message(t, rec))
}

func TestUpdateAndDelete_OwnerOnly(t *testing.T) {
	s := newTestServer(t, entity.Article{ID: 1, Timestamp: today, UserID: 1, Title: "Mine", Content: "<p>x</p>", Category: "dev"})
	owner, other := s.tokenFor(t, 1), s.tokenFor(t, 2)
	body := map[string]any{"title": "Edited", "content": []string{"y"}, "category": "dev"}

	rec := s.do(t, http.MethodPut, "/api/articles/1", other, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/articles/1", owner, body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<p>y</p>", s.store.articles[0].Content)

	rec = s.do(t, http.MethodDelete, "/api/articles/1", other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/articles/1", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, s.store.articles)

	rec = s.do(t, http.MethodDelete, "/api/articles/1", owner, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStorageFailure(t *testing.T) {
	s := newTestServer(t)
	s.store.broken = true

	rec := s.do(t, http.MethodGet, "/api/articles/newest", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, status.MsgStorageFailure, message(t, rec))
}
