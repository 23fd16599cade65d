package handlers

import (
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/sr22fit/checkout-web/internal/checkout"
	"github.com/sr22fit/checkout-web/pkg/logging"
)

// SessionCookie names the cookie carrying the checkout session id.
const SessionCookie = "sr22_checkout_session"

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.New("checkout.html").Funcs(template.FuncMap{
	"stateIs": func(v checkout.View, state string) bool { return v.State.String() == state },
}).ParseFS(templateFS, "templates/checkout.html"))

// CheckoutHandler serves the server-rendered checkout form.
type CheckoutHandler struct {
	registry     *Registry
	logger       *logging.Logger
	secureCookie bool
	cookieMaxAge int
}

// NewCheckoutHandler creates the form handler. Cookies are marked Secure
// when the public base URL is served over https.
func NewCheckoutHandler(registry *Registry, publicBaseURL string, logger *logging.Logger) *CheckoutHandler {
	if logger == nil {
		logger = logging.Default()
	}
	secure := false
	if u, err := url.Parse(publicBaseURL); err == nil && u.Scheme == "https" {
		secure = true
	}
	return &CheckoutHandler{
		registry:     registry,
		logger:       logger,
		secureCookie: secure,
		cookieMaxAge: int(registry.ttl.Seconds()),
	}
}

type pageData struct {
	View checkout.View
}

// Mount handles GET /. Every page load is a fresh mount: the previous
// session for this browser is unmounted and a new one bootstrapped with the
// page query.
func (h *CheckoutHandler) Mount(w http.ResponseWriter, r *http.Request) {
	if old, err := r.Cookie(SessionCookie); err == nil && old.Value != "" {
		h.registry.Remove(r.Context(), old.Value)
	}
	id, sess, err := h.registry.Create(r.Context(), r.URL.Query())
	h.setCookie(w, id)
	status := http.StatusOK
	if err != nil {
		status = http.StatusBadGateway
	}
	h.render(w, status, sess.View())
}

// Show handles GET /checkout: it renders the current session without
// remounting it.
func (h *CheckoutHandler) Show(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(r)
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.render(w, http.StatusOK, sess.View())
}

// SelectService handles POST /checkout/service.
func (h *CheckoutHandler) SelectService(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := h.sessionWithID(r)
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	if err := sess.SelectService(r.PostForm.Get("service_id")); err != nil {
		status := http.StatusConflict
		if errors.Is(err, checkout.ErrUnknownService) {
			status = http.StatusUnprocessableEntity
		}
		h.render(w, status, sess.View())
		return
	}
	h.registry.Persist(r.Context(), id, sess)
	http.Redirect(w, r, "/checkout", http.StatusSeeOther)
}

// UpdateClient handles POST /checkout/client. A changed phone runs the
// lookup before the typed name is applied, so a resolved name wins.
func (h *CheckoutHandler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := h.sessionWithID(r)
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	if _, present := r.PostForm["phone"]; present {
		phone := r.PostForm.Get("phone")
		if phone != sess.View().Client.Phone {
			sess.ChangePhone(r.Context(), phone)
		}
	}
	if _, present := r.PostForm["name"]; present {
		if err := sess.SetName(r.PostForm.Get("name")); err != nil && !errors.Is(err, checkout.ErrNameLocked) {
			h.logger.Warn("name update rejected", "error", err)
		}
	}
	h.registry.Persist(r.Context(), id, sess)
	http.Redirect(w, r, "/checkout", http.StatusSeeOther)
}

type lookupRequest struct {
	Phone string `json:"phone"`
}

type lookupResponse struct {
	Outcome checkout.LookupOutcome `json:"outcome"`
	View    checkout.View          `json:"view"`
}

// Lookup handles POST /checkout/lookup with a JSON {"phone"} body and
// responds with the resulting view.
func (h *CheckoutHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := h.sessionWithID(r)
	if !ok {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}
	var req lookupRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	outcome := sess.ChangePhone(r.Context(), req.Phone)
	h.registry.Persist(r.Context(), id, sess)
	writeJSON(w, http.StatusOK, lookupResponse{Outcome: outcome, View: sess.View()})
}

// Submit handles POST /checkout/submit: 303 to the hosted checkout page on
// success, back to the form with an inline error otherwise.
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := h.sessionWithID(r)
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	redirect, err := sess.Submit(r.Context())
	if err != nil {
		if errors.Is(err, checkout.ErrSubmitInProgress) {
			h.render(w, http.StatusConflict, sess.View())
			return
		}
		h.registry.Persist(r.Context(), id, sess)
		http.Redirect(w, r, "/checkout", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

// Health handles GET /health.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *CheckoutHandler) session(r *http.Request) (*checkout.Session, bool) {
	_, sess, ok := h.sessionWithID(r)
	return sess, ok
}

func (h *CheckoutHandler) sessionWithID(r *http.Request) (string, *checkout.Session, bool) {
	return sessionFromRequest(r, h.registry)
}

func sessionFromRequest(r *http.Request, registry *Registry) (string, *checkout.Session, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return "", nil, false
	}
	id := strings.TrimSpace(c.Value)
	sess, ok := registry.Get(r.Context(), id)
	return id, sess, ok
}

func (h *CheckoutHandler) setCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   h.cookieMaxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *CheckoutHandler) render(w http.ResponseWriter, status int, view checkout.View) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := pageTemplate.Execute(w, pageData{View: view}); err != nil {
		h.logger.Error("checkout page render failed", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
