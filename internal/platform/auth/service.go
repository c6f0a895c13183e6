package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"citadel-backend/internal/library/audit"
	"citadel-backend/internal/library/idgen"
)

// 学内メールのみ受け付ける
const allowedEmailDomain = "@nitj.ac.in"

const tokenTTL = 7 * 24 * time.Hour

var (
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrBlocked            = errors.New("account blocked")
)

// ValidationError は入力不備。ストアには一切触れずに返す。
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

func errInvalid(msg string) error { return &ValidationError{Msg: msg} }

var (
	nameRe  = regexp.MustCompile(`^[a-zA-Z ]+$`)
	phoneRe = regexp.MustCompile(`^\d{10}$`)
)

type memberIDSource interface {
	NextMemberID(ctx context.Context) (string, error)
}

type recorder interface {
	Record(ctx context.Context, actorID int64, action, description, ip string)
}

type Service struct {
	store  UserStore
	ids    memberIDSource
	audit  recorder
	secret []byte
}

func NewService(conn *sql.DB, rec recorder, secret []byte) *Service {
	return &Service{
		store:  NewStore(conn),
		ids:    idgen.New(conn),
		audit:  rec,
		secret: secret,
	}
}

type AuthService interface {
	Login(ctx context.Context, email, password string) (string, *User, error)
	Signup(ctx context.Context, req SignupRequest, ip string) (string, error)
}

type SignupRequest struct {
	FullName string `json:"full_name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
	UserType string `json:"user_type" binding:"required"`
}

func (s *Service) Login(ctx context.Context, email, password string) (string, *User, error) {
	u, err := s.store.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", nil, err
	}
	if u == nil || u.PasswordHash == "" {
		return "", nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	if u.IsBlocked {
		return "", nil, ErrBlocked
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":       strconv.FormatInt(u.ID, 10),
		"email":     u.Email,
		"role":      u.Role,
		"member_id": u.MemberID,
		"exp":       time.Now().Add(tokenTTL).Unix(),
	})

	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, err
	}
	return tokenString, u, nil
}

func (s *Service) Signup(ctx context.Context, req SignupRequest, ip string) (string, error) {
	if req.FullName == "" || req.Email == "" || req.Phone == "" || req.Password == "" || req.UserType == "" {
		return "", errInvalid("All fields are required")
	}

	emailLower := strings.ToLower(strings.TrimSpace(req.Email))
	if !strings.HasSuffix(emailLower, allowedEmailDomain) {
		return "", errInvalid(fmt.Sprintf("Only institute email allowed (%s)", allowedEmailDomain))
	}
	if !nameRe.MatchString(req.FullName) {
		return "", errInvalid("Name can only contain letters and spaces")
	}
	if len(req.Password) < 8 {
		return "", errInvalid("Password must be 8+ characters")
	}
	if !phoneRe.MatchString(req.Phone) {
		return "", errInvalid("Phone must be 10 digits")
	}
	if req.UserType != "Student" && req.UserType != "Faculty" {
		return "", errInvalid("User type must be Student or Faculty")
	}

	existing, err := s.store.GetByEmail(ctx, emailLower)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", ErrAlreadyExists
	}

	memberID, err := s.ids.NextMemberID(ctx)
	if err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	u := &User{
		MemberID:     memberID,
		FullName:     strings.TrimSpace(req.FullName),
		Email:        emailLower,
		Phone:        req.Phone,
		PasswordHash: string(hash),
		UserType:     sql.NullString{String: req.UserType, Valid: true},
		// role は会員種別と同じ（Student / Faculty）。Admin/Librarian は運用側で付与。
		Role: req.UserType,
	}
	if err := s.store.Create(ctx, u); err != nil {
		return "", err
	}

	s.audit.Record(ctx, u.ID, audit.ActionSignup,
		fmt.Sprintf("New member registered: %s (%s)", u.FullName, u.MemberID), ip)

	return memberID, nil
}
