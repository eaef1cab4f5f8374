package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// CookiePolicy centralizes the session and guest cookie attributes so
// every handler sets them identically. Both cookies are SameSite=Lax
// with Secure on outside development; the session cookie is HttpOnly,
// the guest cookie stays readable by the client app.
type CookiePolicy struct {
	SessionName string
	GuestName   string
	Domain      string
	Secure      bool
	SessionTTL  time.Duration
	GuestTTL    time.Duration
}

// SetSession writes the signed session token cookie
func (p CookiePolicy) SetSession(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(p.SessionName, token, int(p.SessionTTL.Seconds()), "/", p.Domain, p.Secure, true)
}

// ClearSession expires the session cookie
func (p CookiePolicy) ClearSession(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(p.SessionName, "", -1, "/", p.Domain, p.Secure, true)
}

// SetGuest writes the guest session id cookie
func (p CookiePolicy) SetGuest(c *gin.Context, guestID string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(p.GuestName, guestID, int(p.GuestTTL.Seconds()), "/", p.Domain, p.Secure, false)
}

// ClearGuest expires the guest cookie
func (p CookiePolicy) ClearGuest(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(p.GuestName, "", -1, "/", p.Domain, p.Secure, false)
}

// SessionToken reads the session token cookie
func (p CookiePolicy) SessionToken(c *gin.Context) (string, bool) {
	token, err := c.Cookie(p.SessionName)
	if err != nil || token == "" {
		return "", false
	}
	return token, true
}

// GuestID reads the guest session id cookie
func (p CookiePolicy) GuestID(c *gin.Context) (string, bool) {
	guestID, err := c.Cookie(p.GuestName)
	if err != nil || guestID == "" {
		return "", false
	}
	return guestID, true
}
