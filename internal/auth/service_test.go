package auth_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/auth"
)

func TestAuth(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Auth Suite")
}

type mockAuthRepository struct {
	usersByEmail map[string]*auth.User
	usersByID    map[int64]*auth.User
	passwords    map[string]string
}

func newMockAuthRepository() *mockAuthRepository {
	return &mockAuthRepository{
		usersByEmail: make(map[string]*auth.User),
		usersByID:    make(map[int64]*auth.User),
		passwords:    make(map[string]string),
	}
}

func (m *mockAuthRepository) addUser(user *auth.User, password string) {
	hash, err := auth.HashPassword(password, 10)
	Expect(err).NotTo(HaveOccurred())
	m.usersByEmail[user.Email] = user
	m.usersByID[user.ID] = user
	m.passwords[user.Email] = hash
}

func (m *mockAuthRepository) GetCredentials(ctx context.Context, email string) (*auth.User, string, error) {
	user, ok := m.usersByEmail[email]
	if !ok {
		return nil, "", errors.New("user not found")
	}
	return user, m.passwords[email], nil
}

func (m *mockAuthRepository) GetUser(ctx context.Context, userID int64) (*auth.User, error) {
	user, ok := m.usersByID[userID]
	if !ok {
		return nil, errors.New("user not found")
	}
	return user, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

var _ = Describe("Service", func() {
	var (
		repo    *mockAuthRepository
		service *auth.Service
		ctx     context.Context
	)

	securityConfig := internal.SecurityConfig{
		AccessTokenSecret:    "test-access-secret-0123456789abcdef",
		RefreshTokenSecret:   "test-refresh-secret-0123456789abcdef",
		AccessTokenDuration:  15 * time.Minute,
		RefreshTokenDuration: 24 * time.Hour,
		BCryptCost:           10,
	}

	activeUser := &auth.User{
		ID:       42,
		Email:    "user@example.com",
		Name:     "Test User",
		IsActive: true,
	}

	BeforeEach(func() {
		repo = newMockAuthRepository()
		repo.addUser(activeUser, "correct-password")
		service = auth.NewService(repo, auth.NewJWTTokenGenerator(securityConfig), testLogger())
		ctx = context.Background()
	})

	Describe("Authenticate", func() {
		It("returns both tokens for valid credentials", func() {
			tokens, err := service.Authenticate(ctx, auth.LoginDTO{
				Email:    "user@example.com",
				Password: "correct-password",
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(tokens.AccessToken).NotTo(BeEmpty())
			Expect(tokens.RefreshToken).NotTo(BeEmpty())
			Expect(tokens.AccessToken).NotTo(Equal(tokens.RefreshToken))
		})

		It("rejects a wrong password", func() {
			_, err := service.Authenticate(ctx, auth.LoginDTO{
				Email:    "user@example.com",
				Password: "wrong",
			})
			Expect(errors.Is(err, internal.ErrInvalidCredentials)).To(BeTrue())
		})

		It("rejects an unknown email with the same error as a wrong password", func() {
			_, err := service.Authenticate(ctx, auth.LoginDTO{
				Email:    "nobody@example.com",
				Password: "correct-password",
			})
			Expect(errors.Is(err, internal.ErrInvalidCredentials)).To(BeTrue())
		})

		It("rejects an inactive user even with valid credentials", func() {
			repo.addUser(&auth.User{ID: 43, Email: "gone@example.com", IsActive: false}, "pw")

			_, err := service.Authenticate(ctx, auth.LoginDTO{
				Email:    "gone@example.com",
				Password: "pw",
			})
			Expect(errors.Is(err, internal.ErrUserInactive)).To(BeTrue())
		})

		It("rejects missing fields before touching the store", func() {
			_, err := service.Authenticate(ctx, auth.LoginDTO{Email: "user@example.com"})
			Expect(err).To(BeAssignableToTypeOf(auth.ValidationError{}))
		})
	})

	Describe("ValidateAccessToken", func() {
		It("returns the claims for a fresh access token", func() {
			tokens, err := service.Authenticate(ctx, auth.LoginDTO{
				Email:    "user@example.com",
				Password: "correct-password",
			})
			Expect(err).NotTo(HaveOccurred())

			claims, err := service.ValidateAccessToken(tokens.AccessToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(claims.UserID).To(Equal("42"))
			Expect(claims.Email).To(Equal("user@example.com"))
		})

		It("rejects a refresh token used as an access token", func() {
			tokens, err := service.Authenticate(ctx, auth.LoginDTO{
				Email:    "user@example.com",
				Password: "correct-password",
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.ValidateAccessToken(tokens.RefreshToken)
			Expect(errors.Is(err, internal.ErrInvalidToken)).To(BeTrue())
		})

		It("rejects an expired token", func() {
			expired := auth.NewJWTTokenGenerator(internal.SecurityConfig{
				AccessTokenSecret:    securityConfig.AccessTokenSecret,
				RefreshTokenSecret:   securityConfig.RefreshTokenSecret,
				AccessTokenDuration:  -time.Minute,
				RefreshTokenDuration: time.Hour,
			})
			token, err := expired.GenerateAccessToken(activeUser)
			Expect(err).NotTo(HaveOccurred())

			_, err = service.ValidateAccessToken(token)
			Expect(errors.Is(err, internal.ErrTokenExpired)).To(BeTrue())
		})

		It("rejects garbage", func() {
			_, err := service.ValidateAccessToken("not-a-token")
			Expect(errors.Is(err, internal.ErrInvalidToken)).To(BeTrue())
		})
	})

	Describe("RefreshTokens", func() {
		It("rotates both tokens", func() {
			tokens, err := service.Authenticate(ctx, auth.LoginDTO{
				Email:    "user@example.com",
				Password: "correct-password",
			})
			Expect(err).NotTo(HaveOccurred())

			rotated, err := service.RefreshTokens(ctx, tokens.RefreshToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(rotated.AccessToken).NotTo(BeEmpty())

			claims, err := service.ValidateAccessToken(rotated.AccessToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(claims.UserID).To(Equal("42"))
		})

		It("rejects an access token used as a refresh token", func() {
			tokens, err := service.Authenticate(ctx, auth.LoginDTO{
				Email:    "user@example.com",
				Password: "correct-password",
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.RefreshTokens(ctx, tokens.AccessToken)
			Expect(errors.Is(err, internal.ErrInvalidToken)).To(BeTrue())
		})

		It("rejects refresh for a user deactivated since login", func() {
			tokens, err := service.Authenticate(ctx, auth.LoginDTO{
				Email:    "user@example.com",
				Password: "correct-password",
			})
			Expect(err).NotTo(HaveOccurred())

			repo.usersByID[42].IsActive = false
			defer func() { repo.usersByID[42].IsActive = true }()

			_, err = service.RefreshTokens(ctx, tokens.RefreshToken)
			Expect(errors.Is(err, internal.ErrUserInactive)).To(BeTrue())
		})
	})
})
