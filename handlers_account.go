package main

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/example/storefront/internal/auth"
	"github.com/example/storefront/internal/shop"
	"github.com/example/storefront/internal/store"
)

// applySession turns a session effect into the token cookie.
func (a *App) applySession(w http.ResponseWriter, effect auth.SessionEffect) {
	if c := effect.Cookie(a.Config.Production()); c != nil {
		http.SetCookie(w, c)
	}
}

func (a *App) writeSignedIn(w http.ResponseWriter, status int, u *store.User, effect auth.SessionEffect) {
	a.applySession(w, effect)
	writeJSON(w, status, newUserView(u))
}

func (a *App) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	u, effect, err := a.Shop.Signup(r.Context(), shop.SignupInput{Email: in.Email, Name: in.Name, Password: in.Password})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	a.writeSignedIn(w, http.StatusCreated, u, effect)
}

func (a *App) HandleSignin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	u, effect, err := a.Shop.Signin(r.Context(), in.Email, in.Password)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	a.writeSignedIn(w, http.StatusOK, u, effect)
}

func (a *App) HandleSignout(w http.ResponseWriter, r *http.Request) {
	a.applySession(w, a.Shop.Signout(r.Context()))
	writeSuccess(w, http.StatusOK, map[string]string{"message": "Goodbye!"})
}

func (a *App) HandleRequestReset(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	if err := a.Shop.RequestReset(r.Context(), in.Email); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]string{"message": "Check your email for a reset link"})
}

func (a *App) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ResetToken      string `json:"resetToken"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	u, effect, err := a.Shop.ResetPassword(r.Context(), shop.ResetInput{
		ResetToken:      in.ResetToken,
		Password:        in.Password,
		ConfirmPassword: in.ConfirmPassword,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	a.writeSignedIn(w, http.StatusOK, u, effect)
}

// HandleMe answers null for anonymous callers.
func (a *App) HandleMe(w http.ResponseWriter, r *http.Request) {
	u, err := a.Shop.Me(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserView(u))
}

func (a *App) HandleUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.Shop.Users(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	out := make([]*userView, 0, len(users))
	for _, u := range users {
		out = append(out, newUserView(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *App) HandleUpdatePermissions(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Permissions []string `json:"permissions"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	u, err := a.Shop.UpdatePermissions(r.Context(), mux.Vars(r)["id"], in.Permissions)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserView(u))
}
