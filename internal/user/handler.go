package user

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-blog-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-blog-go/internal/credential"
	"github.com/ovaphlow/pitchfork/service-blog-go/internal/status"
	"github.com/ovaphlow/pitchfork/service-blog-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-blog-go/internal/validation"
	"github.com/ovaphlow/pitchfork/service-blog-go/pkg/utilities"
)

// Validator is the schema validator consulted before mutating calls.
type Validator interface {
	Validate(schema string, payload any) error
}

// Handler exposes HTTP endpoints for user and admin accounts.
type Handler struct {
	svc      *UserService
	validate Validator
	verifier auth.Verifier
	logger   *zap.SugaredLogger
}

func NewHandler(svc *UserService, v Validator, verifier auth.Verifier, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, validate: v, verifier: verifier, logger: logger}
}

// Routes mounts /api/users and /api/admins. wrapLogin lets the router
// throttle the two login endpoints.
func (h *Handler) Routes(mux *http.ServeMux, wrapLogin func(http.Handler) http.Handler) {
	if wrapLogin == nil {
		wrapLogin = func(next http.Handler) http.Handler { return next }
	}
	user := func(fn http.HandlerFunc) http.Handler { return auth.Require(credential.TierUser, h.verifier, h.logger, fn) }
	admin := func(fn http.HandlerFunc) http.Handler { return auth.Require(credential.TierAdmin, h.verifier, h.logger, fn) }

	mux.HandleFunc("POST /api/users/new", h.Register)
	mux.Handle("POST /api/users/login", wrapLogin(h.login(credential.TierUser)))
	mux.Handle("GET /api/users/myself", user(h.Myself))
	mux.Handle("DELETE /api/users/myself", user(h.DeleteMyself))
	mux.Handle("PUT /api/users/updatePassword", user(h.updatePassword(credential.TierUser)))
	mux.Handle("PUT /api/users/updateEmail", user(h.updateEmail(credential.TierUser)))
	mux.Handle("GET /api/users/all", admin(h.ListUsers))

	mux.Handle("POST /api/admins/login", wrapLogin(h.login(credential.TierAdmin)))
	mux.Handle("PUT /api/admins/updatePassword", admin(h.updatePassword(credential.TierAdmin)))
	mux.Handle("PUT /api/admins/updateEmail", admin(h.updateEmail(credential.TierAdmin)))
	mux.Handle("GET /api/admins/users", admin(h.ListUsers))
	mux.Handle("PUT /api/admins/upgradeUserToAdmin", admin(h.Upgrade))
	mux.Handle("PUT /api/admins/downgradeOtherAdminToUser", admin(h.DowngradeOther))
	mux.Handle("PUT /api/admins/downgradeMeToUser", admin(h.DowngradeMe))
}

// decode reads the JSON body into dst and runs the named schema over it.
// It writes the 400 response itself and reports whether to continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, schema string, dst any) bool {
	if err := validation.Decode(r.Body, dst); err != nil {
		h.logger.Debugw("invalid payload", "schema", schema, "err", err)
		utilities.WriteMessage(w, http.StatusBadRequest, err.Error())
		return false
	}
	if err := h.validate.Validate(schema, dst); err != nil {
		utilities.WriteMessage(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// fail maps service errors to responses. Storage details are logged by the
// repository and never reach the client.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUserExists):
		utilities.WriteMessage(w, http.StatusBadRequest, "User already exists")
	case errors.Is(err, ErrUserNotFound):
		utilities.WriteMessage(w, http.StatusBadRequest, "No user found.")
	case errors.Is(err, ErrBadPassword):
		utilities.WriteMessage(w, http.StatusBadRequest, "Invalid password.")
	case errors.Is(err, ErrEmailTaken):
		utilities.WriteMessage(w, http.StatusBadRequest, "Email is already in use.")
	case errors.Is(err, ErrEmailMismatch):
		utilities.WriteMessage(w, http.StatusBadRequest, "The old email does not belong to this account.")
	case errors.Is(err, ErrAlreadyAdmin):
		utilities.WriteMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrAdminNotFound):
		utilities.WriteMessage(w, http.StatusBadRequest, "The admin for downgrading was not found.")
	case errors.Is(err, ErrStaleIdentity):
		utilities.WriteMessage(w, http.StatusBadRequest, "Incomplete or wrong data about the account.")
	default:
		if !errors.Is(err, ErrStorage) {
			h.logger.Errorw("account operation failed", "err", err)
		}
		utilities.WriteMessage(w, http.StatusInternalServerError, status.MsgStorageFailure)
	}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req validation.Credentials
	if !h.decode(w, r, validation.SchemaUser, &req) {
		return
	}
	if _, err := h.svc.Register(r.Context(), req.FullName, req.Email, req.Password); err != nil {
		h.fail(w, err)
		return
	}
	utilities.WriteMessage(w, http.StatusCreated, "User created")
}

func (h *Handler) login(tier credential.Tier) http.HandlerFunc {
	schema, welcome := validation.SchemaUser, "You are logged in. Welcome."
	if tier.IsAdmin() {
		schema, welcome = validation.SchemaAdmin, "You are logged in Admin. Welcome."
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req validation.Credentials
		if !h.decode(w, r, schema, &req) {
			return
		}
		token, _, err := h.svc.Login(r.Context(), tier, req.FullName, req.Email, req.Password)
		if err != nil {
			h.logger.Debugw("login failed", "tier", tier.String(), "err", err)
			h.fail(w, err)
			return
		}
		w.Header().Set(auth.TokenHeader, token)
		utilities.WriteMessage(w, http.StatusOK, welcome)
	}
}

func (h *Handler) Myself(w http.ResponseWriter, r *http.Request) {
	c, ok := auth.FromContext(r.Context(), credential.TierUser)
	if !ok {
		utilities.WriteMessage(w, http.StatusInternalServerError, status.MsgStorageFailure)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, entity.PublicView{ID: c.ID, FullName: c.FullName, Email: c.Email})
}

func (h *Handler) DeleteMyself(w http.ResponseWriter, r *http.Request) {
	c, ok := auth.FromContext(r.Context(), credential.TierUser)
	if !ok {
		utilities.WriteMessage(w, http.StatusInternalServerError, status.MsgStorageFailure)
		return
	}
	msg, err := h.svc.DeleteSelf(r.Context(), c.ID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			utilities.WriteMessage(w, http.StatusBadRequest, "No user found for deletion.")
			return
		}
		h.fail(w, err)
		return
	}
	utilities.WriteMessage(w, http.StatusOK, msg)
}

func (h *Handler) updatePassword(tier credential.Tier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := auth.FromContext(r.Context(), tier)
		if !ok {
			utilities.WriteMessage(w, http.StatusInternalServerError, status.MsgStorageFailure)
			return
		}
		var req validation.PasswordUpdate
		if !h.decode(w, r, validation.SchemaPasswordUpdate, &req) {
			return
		}
		msg, err := h.svc.ChangePassword(r.Context(), tier, c.ID, req.OldPassword, req.NewPassword)
		if err != nil {
			if errors.Is(err, ErrBadPassword) {
				utilities.WriteMessage(w, http.StatusBadRequest, "Invalid old password.")
				return
			}
			h.fail(w, err)
			return
		}
		utilities.WriteMessage(w, http.StatusOK, msg)
	}
}

func (h *Handler) updateEmail(tier credential.Tier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := auth.FromContext(r.Context(), tier)
		if !ok {
			utilities.WriteMessage(w, http.StatusInternalServerError, status.MsgStorageFailure)
			return
		}
		var req validation.EmailUpdate
		if !h.decode(w, r, validation.SchemaEmailUpdate, &req) {
			return
		}
		msg, err := h.svc.ChangeEmail(r.Context(), c.ID, req.OldEmail, req.NewEmail)
		if err != nil {
			if errors.Is(err, ErrEmailNotFound) {
				utilities.WriteMessage(w, http.StatusBadRequest, fmt.Sprintf("No user by email %s found in the app.", req.OldEmail))
				return
			}
			h.fail(w, err)
			return
		}
		utilities.WriteMessage(w, http.StatusOK, msg)
	}
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.ListUsers(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, rows)
}

func (h *Handler) Upgrade(w http.ResponseWriter, r *http.Request) {
	var req validation.ID
	if !h.decode(w, r, validation.SchemaID, &req) {
		return
	}
	msg, err := h.svc.Upgrade(r.Context(), *req.ID)
	if err != nil {
		h.fail(w, err)
		return
	}
	utilities.WriteMessage(w, http.StatusNonAuthoritativeInfo, msg)
}

func (h *Handler) DowngradeOther(w http.ResponseWriter, r *http.Request) {
	var req validation.Downgrade
	if !h.decode(w, r, validation.SchemaDowngrade, &req) {
		return
	}
	msg, err := h.svc.Downgrade(r.Context(), req.ID, req.FullName, req.Email)
	if err != nil {
		h.fail(w, err)
		return
	}
	utilities.WriteMessage(w, http.StatusOK, msg)
}

func (h *Handler) DowngradeMe(w http.ResponseWriter, r *http.Request) {
	c, ok := auth.FromContext(r.Context(), credential.TierAdmin)
	if !ok {
		utilities.WriteMessage(w, http.StatusInternalServerError, status.MsgStorageFailure)
		return
	}
	msg, err := h.svc.Downgrade(r.Context(), c.ID, c.FullName, c.Email)
	if err != nil {
		if errors.Is(err, ErrAdminNotFound) {
			utilities.WriteMessage(w, http.StatusUnauthorized, "No admin found for downgrading.")
			return
		}
		h.fail(w, err)
		return
	}
	utilities.WriteMessage(w, http.StatusOK, msg)
}
