package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"campus-portal-service/internal/clock"
	"campus-portal-service/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// DefaultTokenTTL is the lifetime of an access token.
const DefaultTokenTTL = 8 * time.Hour

const issuer = "campus-portal"

// User is a configured account. PasswordHash is a bcrypt hash.
type User struct {
	Username     string
	PasswordHash string
	Role         domain.Role
}

type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Service issues and parses HS256 access tokens and checks passwords.
type Service struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
	users  map[string]User
}

type Option func(*Service)

func WithTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.ttl = d
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithUsers(users ...User) Option {
	return func(s *Service) {
		for _, u := range users {
			s.users[u.Username] = u
		}
	}
}

func NewService(secret string, opts ...Option) (*Service, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: secret is required")
	}
	s := &Service{
		secret: []byte(secret),
		ttl:    DefaultTokenTTL,
		clock:  clock.Real{},
		users:  make(map[string]User),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Login checks credentials and returns a signed token for the user.
func (s *Service) Login(username, password string) (string, User, error) {
	user, ok := s.users[username]
	if !ok {
		return "", User{}, domain.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", User{}, domain.ErrUnauthorized
	}
	token, err := s.Issue(user.Username, user.Role)
	if err != nil {
		return "", User{}, err
	}
	return token, user, nil
}

func (s *Service) Issue(subject string, role domain.Role) (string, error) {
	now := s.clock.Now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Service) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", domain.ErrUnauthorized)
	}
	return claims, nil
}

// HashPassword returns a bcrypt hash suitable for the users config. A cost
// of zero uses bcrypt.DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", errors.New("auth: empty password")
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
