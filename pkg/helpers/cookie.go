package helpers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// CookieManager writes and clears the token cookie pair. Both cookies are
// httpOnly; the secure flag comes from configuration so local development over
// plain HTTP still works.
type CookieManager struct {
	Domain string
	Secure bool
}

func NewCookieManager(domain string, secure bool) *CookieManager {
	return &CookieManager{Domain: domain, Secure: secure}
}

func (m *CookieManager) SetTokenPair(c *gin.Context, access string, accessExp time.Time, refresh string, refreshExp time.Time) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AccessTokenCookie, access, maxAgeFrom(accessExp), "/", m.Domain, m.Secure, true)
	c.SetCookie(RefreshTokenCookie, refresh, maxAgeFrom(refreshExp), "/", m.Domain, m.Secure, true)
}

// ClearTokenPair expires both cookies with the same attribute profile used to
// set them, otherwise browsers keep the originals.
func (m *CookieManager) ClearTokenPair(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AccessTokenCookie, "", -1, "/", m.Domain, m.Secure, true)
	c.SetCookie(RefreshTokenCookie, "", -1, "/", m.Domain, m.Secure, true)
}

func maxAgeFrom(exp time.Time) int {
	sec := int(time.Until(exp).Seconds())
	if sec < 0 {
		return 0
	}
	return sec
}
