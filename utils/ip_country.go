package utils

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

var geoHTTPClient = &http.Client{Timeout: 3 * time.Second}

type ipAPIResp struct {
	IP       string `json:"ip"`
	Location string `json:"location"`
}

// simple in-memory TTL cache for lookups
type geoCacheEntry struct {
	value     string
	expiresAt time.Time
}

var (
	ipCountryMu    sync.RWMutex
	ipCountryCache = make(map[string]geoCacheEntry)
	ipCountryTTL   = 24 * time.Hour
)

// NormalizeCountryName returns the country segment of a location-like string,
// splitting on the various dash runes geo providers use.
func NormalizeCountryName(name string) string {
	s := strings.TrimSpace(name)
	if s == "" {
		return ""
	}
	dashMapped := strings.Map(func(r rune) rune {
		switch r {
		case '-', '–', '—', '‑', '‒', '﹣', '－':
			return '-'
		default:
			return r
		}
	}, s)
	if idx := strings.IndexRune(dashMapped, '-'); idx >= 0 {
		return strings.TrimSpace(dashMapped[:idx])
	}
	toks := strings.Fields(dashMapped)
	if len(toks) > 0 {
		return strings.TrimSpace(toks[0])
	}
	return strings.TrimSpace(dashMapped)
}

// IsPrivateIP reports whether the IP is loopback, link-local or RFC1918.
func IsPrivateIP(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	return parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsLinkLocalUnicast()
}

// GetIPCountry resolves the country for an IP, consulting the cache first.
// Lookup failures return an error so callers can fail open.
func GetIPCountry(ctx context.Context, ip string) (string, error) {
	if ip == "" || IsPrivateIP(ip) {
		return "", nil
	}

	ipCountryMu.RLock()
	if entry, ok := ipCountryCache[ip]; ok && time.Now().Before(entry.expiresAt) {
		ipCountryMu.RUnlock()
		return entry.value, nil
	}
	ipCountryMu.RUnlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.cloudcpp.com/ip/"+ip, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "BE-STRONG-APP/1.0")
	resp, err := geoHTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.New("ip lookup failed")
	}

	var payload ipAPIResp
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}

	country := NormalizeCountryName(payload.Location)
	ipCountryMu.Lock()
	ipCountryCache[ip] = geoCacheEntry{value: country, expiresAt: time.Now().Add(ipCountryTTL)}
	ipCountryMu.Unlock()
	return country, nil
}
