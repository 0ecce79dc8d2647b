package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gadar/bestrong/config"
	"github.com/gadar/bestrong/utils"
)

// CountryFilter enforces deny over allow based on client IP country.
// Deny list wins; an empty allow list means every country not denied may pass.
// Lookup errors fail open.
func CountryFilter() gin.HandlerFunc {
	cfg := config.Get()
	denySet := toSet(cfg.DenyCountry)
	allowSet := toSet(cfg.AllowedCountry)
	haveAllow := len(allowSet) > 0

	if !haveAllow && len(denySet) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		ip := effectiveClientIP(c)
		if utils.IsPrivateIP(ip) {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		country, err := utils.GetIPCountry(ctx, ip)
		if err != nil || country == "" {
			c.Next()
			return
		}

		country = utils.NormalizeCountryName(country)
		if _, bad := denySet[country]; bad {
			blockCountry(c, ip, country, 40301)
			return
		}
		if haveAllow {
			if _, ok := allowSet[country]; !ok {
				blockCountry(c, ip, country, 40302)
				return
			}
		}
		c.Next()
	}
}

func blockCountry(c *gin.Context, ip, country string, code int) {
	utils.Respond(c, http.StatusForbidden, code, "access from your region is not allowed",
		gin.H{"ip": ip, "detected_country": country})
	c.Abort()
}

func toSet(list []string) map[string]struct{} {
	m := make(map[string]struct{}, len(list))
	for _, v := range list {
		v = utils.NormalizeCountryName(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		m[v] = struct{}{}
	}
	return m
}

// effectiveClientIP extracts the real visitor IP considering common proxy headers.
// Priority: CF-Connecting-IP > X-Real-IP > first of X-Forwarded-For > gin.ClientIP
func effectiveClientIP(c *gin.Context) string {
	for _, h := range []string{"CF-Connecting-IP", "X-Real-IP"} {
		if v := stripPort(strings.TrimSpace(c.GetHeader(h))); isPublicIP(v) {
			return v
		}
	}
	if v := strings.TrimSpace(c.GetHeader("X-Forwarded-For")); v != "" {
		if cand := stripPort(strings.TrimSpace(strings.Split(v, ",")[0])); isPublicIP(cand) {
			return cand
		}
	}
	return stripPort(c.ClientIP())
}

func stripPort(ip string) string {
	if h, _, err := net.SplitHostPort(ip); err == nil {
		return h
	}
	return ip
}

func isPublicIP(ip string) bool {
	p := net.ParseIP(ip)
	if p == nil {
		return false
	}
	return !p.IsLoopback() && !p.IsPrivate()
}
