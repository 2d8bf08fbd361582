package app

import (
	"crypto/subtle"
	"net/http"
)

// AdminGate authenticates operators with a static credential pair over HTTP Basic.
// It knows nothing about user sessions.
type AdminGate struct {
	user     []byte
	password []byte
	Realm    string
}

func NewAdminGate(user, password string) *AdminGate {
	return &AdminGate{
		user:     []byte(user),
		password: []byte(password),
		Realm:    "Admin Area",
	}
}

func (g *AdminGate) Allow(r *http.Request) bool {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	// evaluate both so the response time does not say which one was wrong
	userOK := subtle.ConstantTimeCompare([]byte(user), g.user)
	passOK := subtle.ConstantTimeCompare([]byte(pass), g.password)
	return userOK&passOK == 1
}
