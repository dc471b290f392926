package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cleancity/wastetrack/internal/rbac"
	"github.com/cleancity/wastetrack/internal/shared"
	"github.com/cleancity/wastetrack/internal/validation"
	"github.com/cleancity/wastetrack/internal/view"
)

// Portal describes one sign-in page. An empty Role admits any identity.
type Portal struct {
	Path      string
	Title     string
	Role      rbac.Role
	Dashboard string
}

// Portals served by the handler.
var (
	CitizenPortal = Portal{Path: "/user/login", Title: "Citizen Login", Dashboard: "/user/dashboard"}
	AdminPortal   = Portal{Path: "/admin/login", Title: "Admin Login", Role: rbac.RoleAdmin, Dashboard: "/admin/dashboard"}
	DriverPortal  = Portal{Path: "/driver/login", Title: "Driver Login", Role: rbac.RoleDriver, Dashboard: "/driver/dashboard"}
)

const invalidCredentialsMessage = "Invalid email or password"

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	roles          rbac.RoleSource
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, roles rbac.RoleSource, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		roles:          roles,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validation.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	for _, portal := range []Portal{CitizenPortal, AdminPortal, DriverPortal} {
		r.Get(portal.Path, h.showLogin(portal))
		r.Post(portal.Path, h.handleLogin(portal))
	}
	r.Get("/user/signup", h.showSignUp)
	r.Post("/user/signup", h.handleSignUp)
	r.Post("/auth/logout", h.handleLogout)
}

type loginForm struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
}

type loginPageData struct {
	Portal Portal
	Form   loginForm
	Errors validation.Errors
}

type signUpForm struct {
	FullName string `form:"full_name"`
	Email    string `form:"email"`
}

type signUpPageData struct {
	Form   signUpForm
	Errors validation.Errors
}

func (h *Handler) showLogin(portal Portal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.render(w, r, http.StatusOK, "pages/login.html", portal.Title, loginPageData{Portal: portal})
	}
}

func (h *Handler) handleLogin(portal Portal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		sess := shared.SessionFromContext(r.Context())
		form := loginForm{
			Email:    strings.TrimSpace(r.PostFormValue("email")),
			Password: r.PostFormValue("password"),
		}
		errs := validation.Struct(h.validator, form)
		if errs.Empty() {
			identity, err := h.service.Authenticate(r.Context(), form.Email, form.Password)
			if err != nil {
				errs.Add("general", invalidCredentialsMessage)
			} else if ok, err := h.holdsRole(r, identity, portal.Role); err != nil {
				h.logger.Error("login role lookup", slog.Any("error", err))
				errs.Add("general", "Unable to sign in right now, please try again")
			} else if !ok {
				h.logger.Warn("login without portal role", slog.String("identity", identity.ID), slog.String("portal", portal.Path))
				h.sessionManager.Regenerate(sess)
				if sess != nil {
					sess.AddFlash(shared.FlashMessage{Kind: "error", Message: rbac.AccessDeniedMessage})
				}
				http.Redirect(w, r, portal.Path, http.StatusSeeOther)
				return
			} else {
				h.service.SignIn(sess, identity)
				if sess != nil {
					sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Welcome back"})
				} else {
					h.logger.Error("session missing during login")
				}
				http.Redirect(w, r, portal.Dashboard, http.StatusSeeOther)
				return
			}
		}
		form.Password = ""
		h.render(w, r, http.StatusBadRequest, "pages/login.html", portal.Title, loginPageData{Portal: portal, Form: form, Errors: errs})
	}
}

func (h *Handler) holdsRole(r *http.Request, identity *Identity, role rbac.Role) (bool, error) {
	if role == "" {
		return true, nil
	}
	roles, err := h.roles.Roles(r.Context(), identity.ID)
	if err != nil {
		return false, err
	}
	return rbac.Principal{IdentityID: identity.ID, Roles: roles}.Has(role), nil
}

func (h *Handler) showSignUp(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "pages/signup.html", "Create Account", signUpPageData{})
}

func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	form := signUpForm{
		FullName: strings.TrimSpace(r.PostFormValue("full_name")),
		Email:    strings.TrimSpace(r.PostFormValue("email")),
	}
	identity, err := h.service.SignUp(r.Context(), SignUpInput{
		Email:    form.Email,
		Password: r.PostFormValue("password"),
		FullName: form.FullName,
	})
	if err != nil {
		errs, ok := validation.AsErrors(err)
		switch {
		case ok:
		case errors.Is(err, ErrEmailTaken):
			errs = validation.Errors{"email": "Email is already registered"}
		default:
			h.logger.Error("sign up", slog.Any("error", err))
			errs = validation.Errors{"general": "Unable to create the account, please try again"}
		}
		h.render(w, r, http.StatusBadRequest, "pages/signup.html", "Create Account", signUpPageData{Form: form, Errors: errs})
		return
	}
	h.service.SignIn(sess, identity)
	if sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Account created"})
	}
	http.Redirect(w, r, CitizenPortal.Dashboard, http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		h.service.SignOut(sess)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, tmpl, title string, data any) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	principal, _ := rbac.PrincipalFromContext(r.Context())
	viewData := view.TemplateData{
		Title:       title,
		Principal:   principal,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, tmpl, viewData); err != nil {
		h.logger.Error("render auth page", slog.String("template", tmpl), slog.Any("error", err))
	}
}

// ShowLoginForTest exposes the GET handler for tests.
func (h *Handler) ShowLoginForTest(portal Portal) http.HandlerFunc {
	return h.showLogin(portal)
}

// HandleLoginForTest exposes the POST handler for tests.
func (h *Handler) HandleLoginForTest(portal Portal) http.HandlerFunc {
	return h.handleLogin(portal)
}

// HandleSignUpForTest exposes the sign-up POST handler for tests.
func (h *Handler) HandleSignUpForTest(w http.ResponseWriter, r *http.Request) {
	h.handleSignUp(w, r)
}
