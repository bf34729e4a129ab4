package repo

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-blog-go/internal/article/entity"
	"github.com/ovaphlow/pitchfork/service-blog-go/internal/article/interval"
	"github.com/ovaphlow/pitchfork/service-blog-go/internal/status"
	"github.com/ovaphlow/pitchfork/service-blog-go/pkg/database"
)

// Result is the envelope every ArticleRepo lookup and mutation returns.
type Result = status.Status[entity.Article]

const (
	articleColumns = `a.id, a.timestamp, a.user_id, a.title, a.content, a.category, COALESCE(u.full_name, '') AS full_name`
	fromJoined     = ` FROM articles a LEFT JOIN users_and_admins u ON u.id = a.user_id`
	selectJoined   = `SELECT ` + articleColumns + fromJoined
	returningRow   = ` RETURNING id, timestamp, user_id, title, content, category`
)

const (
	qFindNewest             = selectJoined + ` ORDER BY a.timestamp DESC, a.id DESC LIMIT 1`
	qFindByID               = selectJoined + ` WHERE a.id = $1`
	qFindByIDs              = selectJoined + ` WHERE a.id = ANY($1) ORDER BY a.id`
	qFindByOwnerFullName    = selectJoined + ` WHERE u.full_name = $1 AND u.is_active = TRUE ORDER BY a.timestamp DESC`
	qFindByTitle            = selectJoined + ` WHERE a.title ILIKE $1 ESCAPE '\' ORDER BY a.timestamp DESC`
	qFindByCategory         = selectJoined + ` WHERE a.category = $1 ORDER BY a.timestamp DESC`
	qFindByOwnerAndCategory = selectJoined + ` WHERE u.full_name = $1 AND u.is_active = TRUE AND a.category = $2 ORDER BY a.timestamp DESC`
	qFindByTitleAndCategory = selectJoined + ` WHERE a.title ILIKE $1 ESCAPE '\' AND a.category = $2 ORDER BY a.timestamp DESC`
	qFindInRange            = selectJoined + ` WHERE a.timestamp >= $1 AND a.timestamp <= $2 ORDER BY a.id`
	qCreate                 = `INSERT INTO articles (timestamp, user_id, title, content, category) VALUES ($1, $2, $3, $4, $5)` + returningRow
	qUpdate                 = `UPDATE articles SET title = $1, content = $2, category = $3 WHERE id = $4`
	qDelete                 = `DELETE FROM articles WHERE id = $1`
	qRecordVisit            = `INSERT INTO visits (article_id, viewed_at) VALUES ($1, $2)`
	qCountVisits            = `SELECT COUNT(*) FROM visits WHERE article_id = $1`
)

const msgFound = "Query run succeeded"

// ArticleRepo provides data access for articles and their visit log.
type ArticleRepo struct {
	db     *sqlx.DB
	logger *zap.SugaredLogger
	now    func() time.Time
	pick   func(n int) int
}

func NewArticleRepo(db *sqlx.DB, logger *zap.SugaredLogger) *ArticleRepo {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ArticleRepo{db: db, logger: logger, now: time.Now, pick: rand.IntN}
}

// EnsureTable creates the articles and visits tables if not exists.
// users_and_admins must already exist.
func (r *ArticleRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS articles (
  id BIGSERIAL PRIMARY KEY,
  timestamp TIMESTAMPTZ NOT NULL,
  user_id BIGINT NOT NULL REFERENCES users_and_admins(id),
  title TEXT NOT NULL,
  content TEXT NOT NULL,
  category TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_articles_timestamp ON articles(timestamp);
CREATE INDEX IF NOT EXISTS idx_articles_category ON articles(category);
CREATE TABLE IF NOT EXISTS visits (
  id BIGSERIAL PRIMARY KEY,
  article_id BIGINT NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
  viewed_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_visits_article_id ON visits(article_id);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

func (r *ArticleRepo) selectRows(ctx context.Context, op, msg, q string, args ...any) Result {
	var rows []entity.Article
	err := database.WithConn(ctx, r.db, func(conn *sqlx.Conn) error {
		return conn.SelectContext(ctx, &rows, q, args...)
	})
	if err != nil {
		database.LogFailure(r.logger, op, err)
		return status.Storage[entity.Article]()
	}
	return status.Success(msg, rows)
}

func (r *ArticleRepo) exec(ctx context.Context, op, msg, q string, args ...any) Result {
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
		return status.Storage[entity.Article]()
	}
	return status.Mutated[entity.Article](msg, affected)
}

// viewed records a visit for the first row of a successful read.
func (r *ArticleRepo) viewed(ctx context.Context, res Result) Result {
	if a, ok := res.First(); ok {
		r.recordVisit(ctx, a.ID)
	}
	return res
}

// recordVisit appends a visit on its own connection. A failure is logged
// and otherwise ignored; the read that triggered it has already succeeded.
func (r *ArticleRepo) recordVisit(ctx context.Context, articleID int64) {
	ctx = context.WithoutCancel(ctx)
	err := database.WithConn(ctx, r.db, func(conn *sqlx.Conn) error {
		_, err := conn.ExecContext(ctx, qRecordVisit, articleID, r.now().UTC())
		return err
	})
	if err != nil {
		r.logger.Warnw("visit not recorded", "article_id", articleID, "err", err)
	}
}

// likePattern wraps s for a substring ILIKE, escaping its wildcards.
func likePattern(s string) string {
	s = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
	return "%" + s + "%"
}

// FindNewest returns the article with the latest timestamp and records a visit.
func (r *ArticleRepo) FindNewest(ctx context.Context) Result {
	return r.viewed(ctx, r.selectRows(ctx, "article.find_newest", msgFound, qFindNewest))
}

// FindByID returns one article and records a visit when it exists.
func (r *ArticleRepo) FindByID(ctx context.Context, id int64) Result {
	return r.viewed(ctx, r.selectRows(ctx, "article.find_by_id", msgFound, qFindByID, id))
}

// FindByIDs is a listing; it records no visits.
func (r *ArticleRepo) FindByIDs(ctx context.Context, ids []int64) Result {
	if len(ids) == 0 {
		return status.Success[entity.Article](msgFound, nil)
	}
	return r.selectRows(ctx, "article.find_by_ids", msgFound, qFindByIDs, pq.Array(ids))
}

func (r *ArticleRepo) FindByOwnerFullName(ctx context.Context, fullName string) Result {
	return r.selectRows(ctx, "article.find_by_owner", msgFound, qFindByOwnerFullName, fullName)
}

// FindByTitle matches title as a case-insensitive substring.
func (r *ArticleRepo) FindByTitle(ctx context.Context, title string) Result {
	return r.selectRows(ctx, "article.find_by_title", msgFound, qFindByTitle, likePattern(title))
}

func (r *ArticleRepo) FindByCategory(ctx context.Context, category string) Result {
	return r.selectRows(ctx, "article.find_by_category", msgFound, qFindByCategory, category)
}

func (r *ArticleRepo) FindByOwnerAndCategory(ctx context.Context, fullName, category string) Result {
	return r.selectRows(ctx, "article.find_by_owner_and_category", msgFound, qFindByOwnerAndCategory, fullName, category)
}

func (r *ArticleRepo) FindByTitleAndCategory(ctx context.Context, title, category string) Result {
	return r.selectRows(ctx, "article.find_by_title_and_category", msgFound, qFindByTitleAndCategory, likePattern(title), category)
}

// FindRandomInRange loads every article created between the start of from's
// UTC day and the end of to's, picks one uniformly and records a visit for
// it. A reversed range is refused without touching storage.
func (r *ArticleRepo) FindRandomInRange(ctx context.Context, from, to time.Time) Result {
	if from.After(to) {
		return status.Failed[entity.Article](status.InvalidInput, interval.MsgBadDates)
	}
	res := r.selectRows(ctx, "article.find_random", msgFound, qFindInRange, interval.DayStart(from), interval.DayEnd(to))
	if !res.Succeeded() || len(res.Rows) == 0 {
		return res
	}
	chosen := res.Rows[r.pick(len(res.Rows))]
	return r.viewed(ctx, status.Success(msgFound, []entity.Article{chosen}))
}

// Create stores a new article stamped with the current UTC time.
func (r *ArticleRepo) Create(ctx context.Context, userID int64, title string, content []string, category string) Result {
	return r.selectRows(ctx, "article.create", "Article Added.", qCreate,
		r.now().UTC(), userID, title, entity.JoinParagraphs(content), category)
}

// Update overwrites title, content and category.
func (r *ArticleRepo) Update(ctx context.Context, id int64, title, category string, content []string) Result {
	return r.exec(ctx, "article.update", "Article updated.", qUpdate, title, entity.JoinParagraphs(content), category, id)
}

// Delete removes the article; its visits go with it.
func (r *ArticleRepo) Delete(ctx context.Context, id int64) Result {
	return r.exec(ctx, "article.delete", "Article deleted.", qDelete, id)
}

// CountVisits reports how many views were recorded for articleID.
func (r *ArticleRepo) CountVisits(ctx context.Context, articleID int64) status.Status[entity.VisitCount] {
	var n int64
	err := database.WithConn(ctx, r.db, func(conn *sqlx.Conn) error {
		return conn.GetContext(ctx, &n, qCountVisits, articleID)
	})
	if err != nil {
		database.LogFailure(r.logger, "article.count_visits", err)
		return status.Storage[entity.VisitCount]()
	}
	return status.Success(msgFound, []entity.VisitCount{{ArticleID: articleID, Visits: n}})
}
