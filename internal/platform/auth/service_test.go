package auth

import (
	"context"
	"database/sql"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// ===== テスト用フェイク =====

type fakeUserStore struct {
	users   map[string]*User // email -> user
	created []*User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]*User{}}
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*User, error) {
	return f.users[email], nil
}

func (f *fakeUserStore) Create(_ context.Context, u *User) error {
	if _, ok := f.users[u.Email]; ok {
		return ErrAlreadyExists
	}
	u.ID = int64(len(f.created) + 1)
	f.users[u.Email] = u
	f.created = append(f.created, u)
	return nil
}

type fakeMemberIDs struct{}

func (fakeMemberIDs) NextMemberID(context.Context) (string, error) { return "MEM-2025-0042", nil }

type fakeRecorder struct{ entries []string }

func (r *fakeRecorder) Record(_ context.Context, _ int64, action, description, _ string) {
	r.entries = append(r.entries, action+": "+description)
}

var testSecret = []byte("test-secret")

func newTestService(store *fakeUserStore) (*Service, *fakeRecorder) {
	rec := &fakeRecorder{}
	return &Service{
		store:  store,
		ids:    fakeMemberIDs{},
		audit:  rec,
		secret: testSecret,
	}, rec
}

func seedUser(f *fakeUserStore, email, password, role string, blocked bool) *User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	u := &User{
		ID:           int64(len(f.created) + 1),
		MemberID:     "MEM-2025-0001",
		FullName:     "Asha Verma",
		Email:        email,
		PasswordHash: string(hash),
		UserType:     sql.NullString{String: "Student", Valid: true},
		Role:         role,
		IsActive:     true,
		IsBlocked:    blocked,
	}
	f.users[email] = u
	return u
}

func validSignup() SignupRequest {
	return SignupRequest{
		FullName: "Asha Verma",
		Email:    "asha.verma@nitj.ac.in",
		Phone:    "9876543210",
		Password: "sup3rsecret",
		UserType: "Student",
	}
}

// ===== Signup =====

func TestSignupHappyPath(t *testing.T) {
	f := newFakeUserStore()
	svc, rec := newTestService(f)

	memberID, err := svc.Signup(context.Background(), validSignup(), "10.0.0.1")
	require.NoError(t, err)
	require.Equal(t, "MEM-2025-0042", memberID)

	require.Len(t, f.created, 1)
	u := f.created[0]
	require.Equal(t, "asha.verma@nitj.ac.in", u.Email)
	require.Equal(t, "Student", u.Role)
	require.Equal(t, "Student", u.UserType.String)
	// 平文では保存されない
	require.NotEqual(t, "sup3rsecret", u.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("sup3rsecret")))

	require.Len(t, rec.entries, 1)
	require.Contains(t, rec.entries[0], "SIGNUP")
	require.Contains(t, rec.entries[0], "MEM-2025-0042")
}

func TestSignupLowercasesEmail(t *testing.T) {
	f := newFakeUserStore()
	svc, _ := newTestService(f)

	req := validSignup()
	req.Email = "  Asha.Verma@NITJ.AC.IN "
	_, err := svc.Signup(context.Background(), req, "")
	require.NoError(t, err)
	require.Equal(t, "asha.verma@nitj.ac.in", f.created[0].Email)
}

func TestSignupValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*SignupRequest)
	}{
		{"missing field", func(r *SignupRequest) { r.Email = "" }},
		{"wrong domain", func(r *SignupRequest) { r.Email = "asha@gmail.com" }},
		{"name with digits", func(r *SignupRequest) { r.FullName = "Asha 2" }},
		{"short password", func(r *SignupRequest) { r.Password = "short" }},
		{"phone too short", func(r *SignupRequest) { r.Phone = "12345" }},
		{"phone with letters", func(r *SignupRequest) { r.Phone = "98765abc10" }},
		{"bad user type", func(r *SignupRequest) { r.UserType = "Admin" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFakeUserStore()
			svc, _ := newTestService(f)
			req := validSignup()
			tc.mutate(&req)

			_, err := svc.Signup(context.Background(), req, "")
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			// バリデーション失敗時はストアに触れない
			require.Empty(t, f.created)
		})
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	f := newFakeUserStore()
	seedUser(f, "asha.verma@nitj.ac.in", "whatever1", "Student", false)
	svc, _ := newTestService(f)

	_, err := svc.Signup(context.Background(), validSignup(), "")
	require.ErrorIs(t, err, ErrAlreadyExists)
}

// ===== Login =====

func TestLoginHappyPath(t *testing.T) {
	f := newFakeUserStore()
	seedUser(f, "asha.verma@nitj.ac.in", "sup3rsecret", "Librarian", false)
	svc, _ := newTestService(f)

	token, u, err := svc.Login(context.Background(), "Asha.Verma@nitj.ac.in ", "sup3rsecret")
	require.NoError(t, err)
	require.Equal(t, "Librarian", u.Role)

	// 発行トークンはミドルウェアと同じ鍵・クレームで検証できる
	parsed, err := jwt.Parse(token, func(*jwt.Token) (any, error) { return testSecret, nil })
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	require.Equal(t, "1", claims["sub"])
	require.Equal(t, "Librarian", claims["role"])
	require.Equal(t, "MEM-2025-0001", claims["member_id"])
}

func TestLoginWrongPassword(t *testing.T) {
	f := newFakeUserStore()
	seedUser(f, "asha.verma@nitj.ac.in", "sup3rsecret", "Student", false)
	svc, _ := newTestService(f)

	_, _, err := svc.Login(context.Background(), "asha.verma@nitj.ac.in", "wrong-pass")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownEmail(t *testing.T) {
	f := newFakeUserStore()
	svc, _ := newTestService(f)

	_, _, err := svc.Login(context.Background(), "nobody@nitj.ac.in", "whatever1")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginBlockedAccount(t *testing.T) {
	f := newFakeUserStore()
	seedUser(f, "asha.verma@nitj.ac.in", "sup3rsecret", "Student", true)
	svc, _ := newTestService(f)

	_, _, err := svc.Login(context.Background(), "asha.verma@nitj.ac.in", "sup3rsecret")
	require.ErrorIs(t, err, ErrBlocked)
}
