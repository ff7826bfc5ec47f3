package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"party-rooms/internal/domain"
	"party-rooms/internal/repository"
	"party-rooms/internal/repository/mocks"
	"party-rooms/internal/service"
)

// --- Register ---

func TestAuthService_Register_Success(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService, err := service.NewAuthService(mockUserRepo, "very-secret-key", 1)
	require.NoError(t, err)

	ctx := context.Background()
	username := "newbie"
	password := "StrongPass123"
	email := "newbie@example.com"

	mockUserRepo.On("Save", ctx, mock.MatchedBy(func(user *domain.User) bool {
		assert.Equal(t, username, user.Username)
		assert.Equal(t, email, user.Email)
		assert.Equal(t, "Newbie", user.Nickname)
		assert.Equal(t, domain.RoleUser, user.Role)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)), "密码应被正确哈希")
		return true
	})).
		Run(func(args mock.Arguments) {
			userArg := args.Get(1).(*domain.User)
			userArg.ID = 5
			userArg.CreatedAt = time.Now().Add(-time.Second)
			userArg.UpdatedAt = time.Now().Add(-time.Second)
		}).
		Return(nil).
		Once()

	registeredUser, err := authService.Register(ctx, username, password, email, " Newbie ")

	require.NoError(t, err)
	require.NotNil(t, registeredUser)
	assert.Equal(t, uint(5), registeredUser.ID)
	assert.Equal(t, username, registeredUser.Username)
	assert.Empty(t, registeredUser.Password, "返回的用户密码应为空")
	assert.False(t, registeredUser.CreatedAt.IsZero())

	mockUserRepo.AssertExpectations(t)
}

func TestAuthService_Register_MissingFields(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "secret", 1)

	_, err := authService.Register(context.Background(), "  ", "password", "", "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrInvalidInput))
	mockUserRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestAuthService_Register_SaveFails_DuplicateEntry(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "secret", 1)
	ctx := context.Background()

	mockUserRepo.On("Save", ctx, mock.AnythingOfType("*domain.User")).Return(repository.ErrDuplicateEntry).Once()

	_, err := authService.Register(ctx, "anotherNewUser", "password", "email2@test.com", "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrRegistrationFailed), "保存冲突时应返回 ErrRegistrationFailed")
	mockUserRepo.AssertExpectations(t)
}

func TestAuthService_Register_SaveFails_Internal(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "secret", 1)
	ctx := context.Background()

	mockUserRepo.On("Save", ctx, mock.AnythingOfType("*domain.User")).Return(errors.New("connection reset")).Once()

	_, err := authService.Register(ctx, "someone", "password", "", "")

	require.Error(t, err)
	assert.Equal(t, "INTERNAL_ERROR", service.ErrorCode(err))
	mockUserRepo.AssertExpectations(t)
}

// --- Login ---

func TestAuthService_Login_Success(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	secret := "test-secret"
	authService, _ := service.NewAuthService(mockUserRepo, secret, 24)
	ctx := context.Background()
	username := "testuser"
	password := "password123"
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	userInDb := &domain.User{ID: 1, Username: username, Password: string(hashedPassword), Role: domain.RoleOfficial}

	mockUserRepo.On("FindByUsername", ctx, username).Return(userInDb, nil).Once()

	token, err := authService.Login(ctx, username, password)

	require.NoError(t, err)
	require.NotEmpty(t, token)

	parsed, err := jwt.Parse(token, func(*jwt.Token) (interface{}, error) { return []byte(secret), nil })
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, float64(1), claims["user_id"])
	assert.Equal(t, "OFFICIAL", claims["role"])

	mockUserRepo.AssertExpectations(t)
}

func TestAuthService_Login_UserNotFound(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "test-secret", 24)
	ctx := context.Background()

	mockUserRepo.On("FindByUsername", ctx, "nonexistent").Return(nil, repository.ErrUserNotFound).Once()

	token, err := authService.Login(ctx, "nonexistent", "password")

	require.Error(t, err)
	assert.Empty(t, token)
	assert.True(t, errors.Is(err, service.ErrAuthenticationFailed))
	mockUserRepo.AssertExpectations(t)
}

func TestAuthService_Login_IncorrectPassword(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "test-secret", 24)
	ctx := context.Background()
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	userInDb := &domain.User{ID: 1, Username: "testuser", Password: string(hashedPassword)}

	mockUserRepo.On("FindByUsername", ctx, "testuser").Return(userInDb, nil).Once()

	token, err := authService.Login(ctx, "testuser", "wrongpassword")

	require.Error(t, err)
	assert.Empty(t, token)
	assert.True(t, errors.Is(err, service.ErrAuthenticationFailed))
	mockUserRepo.AssertExpectations(t)
}

func TestNewAuthService_EmptySecret(t *testing.T) {
	_, err := service.NewAuthService(new(mocks.UserRepository), "", 1)
	assert.Error(t, err)
}
