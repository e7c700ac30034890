package repository

import (
	"testing"

	"github.com/bonds-app/bonds/internal/db/dbtest"
	"github.com/bonds-app/bonds/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserCreateDefaults(t *testing.T) {
	repo := NewUserRepository(dbtest.New(t))

	hash := "bcrypt-hash"
	user := &model.User{
		Email:        "a@x.com",
		Name:         "Jo",
		PasswordHash: &hash,
		IsActive:     true,
		IsVerified:   true,
	}
	require.NoError(t, repo.Create(user))
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, model.RoleMember, user.Role)
	assert.False(t, user.CreatedAt.IsZero())

	got, err := repo.ByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got.Email)
	require.NotNil(t, got.PasswordHash)
	assert.Equal(t, hash, *got.PasswordHash)
}

func TestUserDuplicateEmail(t *testing.T) {
	repo := NewUserRepository(dbtest.New(t))

	require.NoError(t, repo.Create(&model.User{Email: "a@x.com", Name: "Jo"}))

	err := repo.Create(&model.User{Email: "a@x.com", Name: "Other"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestUserNotFound(t *testing.T) {
	repo := NewUserRepository(dbtest.New(t))

	_, err := repo.ByID("missing")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = repo.ByEmail("nobody@x.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserSetPassword(t *testing.T) {
	repo := NewUserRepository(dbtest.New(t))

	user := &model.User{Email: "a@x.com", Name: "Jo"}
	require.NoError(t, repo.Create(user))

	require.NoError(t, repo.SetPassword(user.ID, "new-hash"))

	got, err := repo.ByID(user.ID)
	require.NoError(t, err)
	require.NotNil(t, got.PasswordHash)
	assert.Equal(t, "new-hash", *got.PasswordHash)

	assert.ErrorIs(t, repo.SetPassword("missing", "hash"), ErrUserNotFound)
}

func TestUserSetActive(t *testing.T) {
	repo := NewUserRepository(dbtest.New(t))

	user := &model.User{Email: "a@x.com", Name: "Jo", IsActive: true}
	require.NoError(t, repo.Create(user))

	require.NoError(t, repo.SetActive(user.ID, false))

	got, err := repo.ByID(user.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}
