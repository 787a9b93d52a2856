// Package middleware содержит HTTP middleware торгового автомата.
package middleware

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	authCookieName = "operator_token"
	authCookieTTL  = 12 * time.Hour
)

// OperatorAuth проверяет, что запрос выполняет обслуживающий персонал,
// по подписанному cookie с временем выдачи.
type OperatorAuth struct {
	secretKey   []byte
	operatorKey string
	now         func() time.Time
}

// NewOperatorAuth создаёт OperatorAuth. Пустой operatorKey запрещает вход оператора.
func NewOperatorAuth(operatorKey string) *OperatorAuth {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		secret = []byte(operatorKey + ":vending-operator")
	}

	return &OperatorAuth{
		secretKey:   secret,
		operatorKey: operatorKey,
		now:         time.Now,
	}
}

// CheckKey сверяет ключ оператора.
func (a *OperatorAuth) CheckKey(key string) bool {
	if a.operatorKey == "" || key == "" {
		return false
	}
	return hmac.Equal([]byte(key), []byte(a.operatorKey))
}

// Middleware пропускает запрос только с действительным cookie оператора.
func (a *OperatorAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(authCookieName)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		issuedAt, ok := a.parseCookie(cookie.Value)
		if !ok || a.now().Sub(issuedAt) > authCookieTTL {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// SetAuthCookie устанавливает cookie оператора.
func (a *OperatorAuth) SetAuthCookie(w http.ResponseWriter) {
	issuedAt := a.now()

	cookie := &http.Cookie{
		Name:     authCookieName,
		Value:    a.sign(strconv.FormatInt(issuedAt.Unix(), 10)),
		Path:     "/",
		Expires:  issuedAt.Add(authCookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	http.SetCookie(w, cookie)
}

func (a *OperatorAuth) sign(payload string) string {
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(payload))
	return payload + "." + hex.EncodeToString(mac.Sum(nil))
}

func (a *OperatorAuth) parseCookie(value string) (time.Time, bool) {
	payload, signature, found := strings.Cut(value, ".")
	if !found {
		return time.Time{}, false
	}

	_, expected, _ := strings.Cut(a.sign(payload), ".")
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return time.Time{}, false
	}

	unix, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return time.Time{}, false
	}

	return time.Unix(unix, 0), true
}
