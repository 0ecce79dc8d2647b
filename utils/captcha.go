package utils

import (
	"context"
	"time"

	"github.com/mojocn/base64Captcha"
)

// The captcha store prefers Redis so instances behind a load balancer can
// verify answers generated by a sibling. Without Redis it degrades to the
// library's in-memory store, which is fine for a single node and for tests.
var captchaStore base64Captcha.Store = &redisCaptchaStore{
	ttl:      10 * time.Minute,
	fallback: base64Captcha.DefaultMemStore,
}

// GenerateCaptcha creates a 5-digit captcha and returns (id, dataURI).
func GenerateCaptcha() (string, string, error) {
	driver := base64Captcha.NewDriverDigit(40, 120, 5, 0.7, 80)
	c := base64Captcha.NewCaptcha(driver, captchaStore)
	id, b64, _, err := c.Generate()
	return id, b64, err
}

// VerifyCaptcha checks the answer and consumes the captcha on success.
func VerifyCaptcha(id, answer string) bool {
	if id == "" || answer == "" {
		return false
	}
	return captchaStore.Verify(id, answer, true)
}

// redisCaptchaStore implements base64Captcha.Store on Redis, delegating to
// the fallback store when Redis is unavailable.
type redisCaptchaStore struct {
	ttl      time.Duration
	fallback base64Captcha.Store
}

func (s *redisCaptchaStore) key(id string) string {
	return "captcha:" + id
}

func (s *redisCaptchaStore) Set(id string, value string) error {
	rc := GetRedis()
	if rc == nil {
		return s.fallback.Set(id, value)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return rc.Set(ctx, s.key(id), value, s.ttl).Err()
}

func (s *redisCaptchaStore) Get(id string, clear bool) string {
	rc := GetRedis()
	if rc == nil {
		return s.fallback.Get(id, clear)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	key := s.key(id)
	if clear {
		v, err := rc.GetDel(ctx, key).Result()
		if err != nil {
			return ""
		}
		return v
	}
	v, err := rc.Get(ctx, key).Result()
	if err != nil {
		return ""
	}
	return v
}

func (s *redisCaptchaStore) Verify(id, answer string, clear bool) bool {
	v := s.Get(id, clear)
	return v != "" && v == answer
}
