package server

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/crystal-station/gostation/pkg/boltstore"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for an unknown account or wrong password.
var ErrInvalidCredentials = errors.New("server: invalid credentials")

// Claims holds the JWT claims for an authenticated account.
type Claims struct {
	Name       string `json:"name"`
	AdminFlags uint32 `json:"admin_flags"`
	jwt.RegisteredClaims
}

// AuthService provides JWT-based authentication bound to bolt accounts.
type AuthService struct {
	store  *boltstore.Store
	jwtKey []byte
	expiry time.Duration
}

// NewAuthService creates an auth service. If jwtSecret is empty, a random
// 32-byte key is generated.
func NewAuthService(store *boltstore.Store, jwtSecret string, expirySeconds int) *AuthService {
	var key []byte
	if jwtSecret != "" {
		key = []byte(jwtSecret)
	} else {
		key = make([]byte, 32)
		rand.Read(key)
	}
	expiry := 24 * time.Hour
	if expirySeconds > 0 {
		expiry = time.Duration(expirySeconds) * time.Second
	}
	return &AuthService{
		store:  store,
		jwtKey: key,
		expiry: expiry,
	}
}

// Register creates an account with a bcrypt password hash.
func (a *AuthService) Register(name, password string) error {
	name = strings.TrimSpace(name)
	if name == "" || len(password) < 4 {
		return fmt.Errorf("server: register: name and a password of at least 4 characters are required")
	}
	if a.store == nil {
		return fmt.Errorf("server: register: no account store")
	}
	if _, err := a.store.GetAccount(name); err == nil {
		return fmt.Errorf("server: register: account %q already exists", name)
	} else if !errors.Is(err, boltstore.ErrNotFound) {
		return fmt.Errorf("server: register: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("server: register: hashing password: %w", err)
	}
	return a.store.PutAccount(&boltstore.Account{
		Name:         name,
		PasswordHash: hash,
		Created:      time.Now(),
	})
}

// Authenticate checks a password against the stored hash and stamps the
// account's last login.
func (a *AuthService) Authenticate(name, password string) (*boltstore.Account, error) {
	if a.store == nil {
		return nil, ErrInvalidCredentials
	}
	acc, err := a.store.GetAccount(name)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	acc.LastLogin = time.Now()
	if err := a.store.PutAccount(acc); err != nil {
		return nil, fmt.Errorf("server: login: %w", err)
	}
	return acc, nil
}

// Login authenticates an account and returns a JWT token.
func (a *AuthService) Login(name, password string) (string, error) {
	acc, err := a.Authenticate(name, password)
	if err != nil {
		return "", err
	}
	now := time.Now()
	claims := Claims{
		Name:       acc.Name,
		AdminFlags: acc.AdminFlags,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strings.ToLower(acc.Name),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.expiry)),
			Issuer:    "gostation",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtKey)
}

// ValidateToken parses and validates a JWT token string.
func (a *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.jwtKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("server: invalid token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("server: invalid token claims")
	}
	return claims, nil
}

// RefreshToken creates a new token with a fresh expiry for an existing valid
// token. Admin flags are re-read from the account.
func (a *AuthService) RefreshToken(tokenStr string) (string, error) {
	claims, err := a.ValidateToken(tokenStr)
	if err != nil {
		return "", err
	}
	if a.store != nil {
		acc, err := a.store.GetAccount(claims.Name)
		if err != nil {
			return "", fmt.Errorf("server: refresh: %w", err)
		}
		claims.AdminFlags = acc.AdminFlags
	}

	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(a.expiry))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtKey)
}

// GenerateJWTSecret generates a random hex-encoded secret suitable for jwt_secret config.
func GenerateJWTSecret() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}
