package article

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-blog-go/internal/article/interval"
	"github.com/ovaphlow/pitchfork/service-blog-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-blog-go/internal/credential"
	"github.com/ovaphlow/pitchfork/service-blog-go/internal/status"
	"github.com/ovaphlow/pitchfork/service-blog-go/internal/validation"
	"github.com/ovaphlow/pitchfork/service-blog-go/pkg/utilities"
)

const (
	msgBadID       = "The article_id must be at least zero integer."
	msgBadFullName = "user full name is missing or the length is less than 3 or greater than 512."
	msgBadCategory = "Category is missing or is wrong."
	msgBadTitle    = "Title is missing."
	msgNotFound    = "No article found."
	msgNotOwner    = "You can only change your own articles."
)

type Validator interface {
	Validate(schema string, payload any) error
}

// Handler exposes /api/articles.
type Handler struct {
	svc      *ArticleService
	validate Validator
	verifier auth.Verifier
	logger   *zap.SugaredLogger
	now      func() time.Time
}

func NewHandler(svc *ArticleService, v Validator, verifier auth.Verifier, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, validate: v, verifier: verifier, logger: logger, now: time.Now}
}

func (h *Handler) Routes(mux *http.ServeMux) {
	user := func(fn http.HandlerFunc) http.Handler { return auth.Require(credential.TierUser, h.verifier, h.logger, fn) }

	mux.HandleFunc("GET /api/articles/{$}", h.ListByIDs)
	mux.HandleFunc("GET /api/articles/newest", h.Newest)
	mux.HandleFunc("GET /api/articles/random", h.Random)
	mux.HandleFunc("GET /api/articles/byUsername", h.ByOwner)
	mux.HandleFunc("GET /api/articles/byCategory", h.ByCategory)
	mux.HandleFunc("GET /api/articles/byTitle", h.ByTitle)
	mux.HandleFunc("GET /api/articles/byUserFullNameAndCategory", h.ByOwnerAndCategory)
	mux.HandleFunc("GET /api/articles/byTitleAndCategory", h.ByTitleAndCategory)
	mux.HandleFunc("GET /api/articles/{id}", h.Get)
	mux.HandleFunc("GET /api/articles/{id}/visits", h.Visits)
	mux.Handle("POST /api/articles/new", user(h.Create))
	mux.Handle("PUT /api/articles/{id}", user(h.Update))
	mux.Handle("DELETE /api/articles/{id}", user(h.Delete))
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrArticleNotFound):
		utilities.WriteMessage(w, http.StatusBadRequest, msgNotFound)
	case errors.Is(err, ErrNotOwner):
		utilities.WriteMessage(w, http.StatusForbidden, msgNotOwner)
	case errors.Is(err, interval.ErrBadDateRange):
		utilities.WriteMessage(w, http.StatusBadRequest, interval.MsgBadDates)
	default:
		if !errors.Is(err, ErrStorage) {
			h.logger.Errorw("article operation failed", "err", err)
		}
		utilities.WriteMessage(w, http.StatusInternalServerError, status.MsgStorageFailure)
	}
}

func (h *Handler) respond(w http.ResponseWriter, v any, err error) {
	if err != nil {
		h.fail(w, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, v)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 0 {
		utilities.WriteMessage(w, http.StatusBadRequest, msgBadID)
		return 0, false
	}
	return id, true
}

func parseIDs(raw string) ([]int64, bool) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id < 0 {
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, len(ids) > 0
}

// ListByIDs serves GET /api/articles/?ids=1,2,3.
func (h *Handler) ListByIDs(w http.ResponseWriter, r *http.Request) {
	ids, ok := parseIDs(r.URL.Query().Get("ids"))
	if !ok {
		utilities.WriteMessage(w, http.StatusBadRequest, msgBadID)
		return
	}
	rows, err := h.svc.GetMany(r.Context(), ids)
	h.respond(w, rows, err)
}

func (h *Handler) Newest(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Newest(r.Context())
	h.respond(w, a, err)
}

// Random serves GET /api/articles/random?from=&to=. With neither bound
// given it picks from today's articles.
func (h *Handler) Random(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	rawFrom, rawTo := qs.Get("from"), qs.Get("to")
	var from, to time.Time
	if rawFrom == "" && rawTo == "" {
		from = h.now()
		to = from
	} else {
		var err error
		if from, to, err = interval.ParseRange(rawFrom, rawTo); err != nil {
			utilities.WriteMessage(w, http.StatusBadRequest, interval.MsgBadDates)
			return
		}
	}
	a, err := h.svc.Random(r.Context(), from, to)
	h.respond(w, a, err)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	a, err := h.svc.Get(r.Context(), id)
	h.respond(w, a, err)
}

func (h *Handler) Visits(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v, err := h.svc.Visits(r.Context(), id)
	h.respond(w, v, err)
}

func (h *Handler) ByOwner(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("full_name")
	if n := len([]rune(name)); n < 3 || n > 512 {
		utilities.WriteMessage(w, http.StatusBadRequest, msgBadFullName)
		return
	}
	rows, err := h.svc.ByOwner(r.Context(), name)
	h.respond(w, rows, err)
}

func (h *Handler) ByCategory(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category == "" {
		utilities.WriteMessage(w, http.StatusBadRequest, msgBadCategory)
		return
	}
	rows, err := h.svc.ByCategory(r.Context(), category)
	h.respond(w, rows, err)
}

func (h *Handler) ByTitle(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if title == "" {
		utilities.WriteMessage(w, http.StatusBadRequest, msgBadTitle)
		return
	}
	rows, err := h.svc.ByTitle(r.Context(), title)
	h.respond(w, rows, err)
}

func (h *Handler) ByOwnerAndCategory(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	req := validation.FullNameAndCategory{FullName: qs.Get("full_name"), Category: qs.Get("category")}
	if err := h.validate.Validate(validation.SchemaUserFullNameAndCategory, &req); err != nil {
		utilities.WriteMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := h.svc.ByOwnerAndCategory(r.Context(), req.FullName, req.Category)
	h.respond(w, rows, err)
}

func (h *Handler) ByTitleAndCategory(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	title, category := qs.Get("title"), qs.Get("category")
	if title == "" {
		utilities.WriteMessage(w, http.StatusBadRequest, msgBadTitle)
		return
	}
	if category == "" {
		utilities.WriteMessage(w, http.StatusBadRequest, msgBadCategory)
		return
	}
	rows, err := h.svc.ByTitleAndCategory(r.Context(), title, category)
	h.respond(w, rows, err)
}

// payload decodes and validates an article body.
func (h *Handler) payload(w http.ResponseWriter, r *http.Request) (validation.Article, bool) {
	var req validation.Article
	if err := validation.Decode(r.Body, &req); err != nil {
		h.logger.Debugw("invalid payload", "err", err)
		utilities.WriteMessage(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	if err := h.validate.Validate(validation.SchemaArticle, &req); err != nil {
		utilities.WriteMessage(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	return req, true
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	c, ok := auth.FromContext(r.Context(), credential.TierUser)
	if !ok {
		utilities.WriteMessage(w, http.StatusInternalServerError, status.MsgStorageFailure)
		return
	}
	req, ok := h.payload(w, r)
	if !ok {
		return
	}
	a, err := h.svc.Publish(r.Context(), c.ID, req.Title, req.Content, req.Category)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.logger.Infow("article published", "article_id", a.ID, "user_id", c.ID)
	utilities.WriteJSON(w, http.StatusCreated, a)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	c, ok := auth.FromContext(r.Context(), credential.TierUser)
	if !ok {
		utilities.WriteMessage(w, http.StatusInternalServerError, status.MsgStorageFailure)
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, ok := h.payload(w, r)
	if !ok {
		return
	}
	msg, err := h.svc.Edit(r.Context(), c.ID, id, req.Title, req.Category, req.Content)
	if err != nil {
		h.fail(w, err)
		return
	}
	utilities.WriteMessage(w, http.StatusOK, msg)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	c, ok := auth.FromContext(r.Context(), credential.TierUser)
	if !ok {
		utilities.WriteMessage(w, http.StatusInternalServerError, status.MsgStorageFailure)
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	msg, err := h.svc.Remove(r.Context(), c.ID, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	utilities.WriteMessage(w, http.StatusOK, msg)
}
