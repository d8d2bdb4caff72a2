// Пакет devidp — локальный провайдер идентификации для разработки
// и тестов filedesk. Генерирует RSA ключ при старте, отдаёт JWKS
// по GET /jwks и подписывает JWT по POST /token.
//
// Токены совместимы с middleware.JWTAuth: sub — UUID пользователя,
// права — в claim "scope" (строка через пробел).
package devidp

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// KeyID — идентификатор ключа в JWKS и заголовке kid.
const KeyID = "devidp-key-1"

// defaultTTL — время жизни токена по умолчанию.
const defaultTTL = time.Hour

// ErrInvalidSubject — sub не является UUID.
var ErrInvalidSubject = errors.New("sub должен быть UUID")

// jwksKey — один ключ JWKS (RFC 7517).
type jwksKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwksResponse struct {
	Keys []jwksKey `json:"keys"`
}

// TokenRequest — тело запроса POST /token.
type TokenRequest struct {
	// Sub — UUID пользователя; пустой — генерируется новый
	Sub string `json:"sub"`
	// Admin — добавить административный scope
	Admin bool `json:"admin"`
	// Scopes — дополнительные scope'ы
	Scopes []string `json:"scopes"`
	// TTLSeconds — время жизни токена (по умолчанию 3600)
	TTLSeconds int `json:"ttl_seconds"`
}

// TokenResponse — ответ POST /token.
type TokenResponse struct {
	Token     string    `json:"token"`
	Sub       string    `json:"sub"`
	ExpiresAt time.Time `json:"expires_at"`
}

// claims — JWT claims в формате OAuth2 "scope".
type claims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope,omitempty"`
}

// Issuer выпускает токены, подписанные собственным RSA ключом.
type Issuer struct {
	key        *rsa.PrivateKey
	jwks       []byte
	adminScope string
	logger     *slog.Logger
	now        func() time.Time
}

// NewIssuer генерирует RSA ключ размера keySize и готовит JWKS.
func NewIssuer(keySize int, adminScope string, logger *slog.Logger) (*Issuer, error) {
	key, err := rsa.GenerateKey(rand.Reader, keySize)
	if err != nil {
		return nil, fmt.Errorf("генерация RSA ключа: %w", err)
	}

	pub := &key.PublicKey
	jwks, err := json.Marshal(jwksResponse{Keys: []jwksKey{{
		Kty: "RSA",
		Kid: KeyID,
		Use: "sig",
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}}})
	if err != nil {
		return nil, fmt.Errorf("сериализация JWKS: %w", err)
	}

	return &Issuer{
		key:        key,
		jwks:       jwks,
		adminScope: adminScope,
		logger:     logger.With(slog.String("component", "devidp")),
		now:        time.Now,
	}, nil
}

// JWKS возвращает JSON с публичным ключом.
func (i *Issuer) JWKS() []byte {
	return i.jwks
}

// Issue подписывает токен по запросу.
func (i *Issuer) Issue(req TokenRequest) (*TokenResponse, error) {
	sub := req.Sub
	if sub == "" {
		sub = uuid.New().String()
	} else if _, err := uuid.Parse(sub); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSubject, sub)
	}

	ttl := defaultTTL
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}

	scopes := append([]string{"openid"}, req.Scopes...)
	if req.Admin {
		scopes = append(scopes, i.adminScope)
	}

	now := i.now()
	expiresAt := now.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    "devidp",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Scope: strings.Join(scopes, " "),
	})
	token.Header["kid"] = KeyID

	signed, err := token.SignedString(i.key)
	if err != nil {
		return nil, fmt.Errorf("подпись JWT: %w", err)
	}

	i.logger.Info("Токен выдан",
		slog.String("sub", sub),
		slog.Bool("admin", req.Admin),
		slog.Duration("ttl", ttl),
	)
	return &TokenResponse{Token: signed, Sub: sub, ExpiresAt: expiresAt}, nil
}

// Routes возвращает HTTP-обработчик: GET /jwks, POST /token, GET /health.
func (i *Issuer) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/jwks", i.handleJWKS)
	r.Post("/token", i.handleToken)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}

func (i *Issuer) handleJWKS(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(i.jwks)
}

func (i *Issuer) handleToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Невалидный JSON: "+err.Error())
			return
		}
	}

	resp, err := i.Issue(req)
	if err != nil {
		if errors.Is(err, ErrInvalidSubject) {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		i.logger.Error("Ошибка выдачи токена", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Ошибка генерации токена")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError — ошибка в формате {"error":{"code","message"}}.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
