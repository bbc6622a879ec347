package web

import (
	"net/http"
	"time"

	"github.com/gorilla/csrf"

	"accesspanel/internal/adapters/http/middleware"
	accountStore "accesspanel/internal/adapters/storage/account"
	"accesspanel/internal/application/orchestrators"
)

// sessionView is the JSON shape of the signed-in operator.
type sessionView struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// handleLogin handles POST /api/login
func handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var input orchestrators.LoginInput
	if err := strictDecode(w, r, &input); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	result, err := orchestrators.ExecuteLogin(r.Context(), input, orchestrators.LoginDeps{
		AccountStore: stores.AccountStore,
		Now:          timeNow,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := sessions.Create(result.AccountID, result.Email, result.Role)
	if err != nil {
		internalError(w, err)
		return
	}
	middleware.SetSessionCookie(w, token, sessions.TTL(), secureCookies)
	writeJSON(w, http.StatusOK, sessionView{Email: result.Email, Role: result.Role})
}

// handleLogout handles POST /api/logout
func handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if token, ok := middleware.SessionToken(r); ok {
		sessions.Delete(token)
	}
	middleware.ClearSessionCookie(w, secureCookies)
	w.WriteHeader(http.StatusNoContent)
}

// handleSession handles GET /api/session
func handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	session, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, sessionView{Email: session.Email, Role: session.Role})
}

// handleChangePassword handles POST /api/session/password
func handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	session, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var input orchestrators.ChangePasswordInput
	if err := strictDecode(w, r, &input); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	input.AccountID = session.AccountID

	if err := orchestrators.ExecuteChangePassword(r.Context(), input, orchestrators.ChangePasswordDeps{
		AccountStore: stores.AccountStore,
	}); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCSRFToken handles GET /api/csrf. Form and multipart posts must echo
// the token in the X-CSRF-Token header.
func handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, map[string]string{"token": csrf.Token(r)})
}

// accountView omits credentials and lockout internals.
type accountView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	Locked    bool      `json:"locked"`
}

// handleAccounts handles GET (list) and POST (create) for /api/admin/accounts
func handleAccounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		accounts, err := stores.AccountStore.List(ctx, accountStore.ListFilter{
			Limit:  queryInt(r, "limit", 100),
			Offset: queryInt(r, "offset", 0),
			Role:   r.URL.Query().Get("role"),
		})
		if err != nil {
			internalError(w, err)
			return
		}
		now := timeNow()
		views := make([]accountView, 0, len(accounts))
		for _, a := range accounts {
			views = append(views, accountView{
				ID:        a.ID,
				Email:     a.Email,
				Role:      a.Role,
				CreatedAt: a.CreatedAt,
				Locked:    a.IsLocked(now),
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"accounts": views})

	case http.MethodPost:
		var input orchestrators.CreateAccountInput
		if err := strictDecode(w, r, &input); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		id, err := orchestrators.ExecuteCreateAccount(ctx, input, orchestrators.CreateAccountDeps{
			AccountStore: stores.AccountStore,
			Now:          timeNow,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": id})

	default:
		methodNotAllowed(w, "GET, POST")
	}
}
