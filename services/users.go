// services/users.go
package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"scavenger-hunt/models"
	"scavenger-hunt/repository"
	"scavenger-hunt/utils"
)

const (
	DefaultLeaderboardSize = 10
	maxLeaderboardSize     = 100
	maxDisplayNameLength   = 64
)

type UserService struct {
	base
}

func NewUserService(store repository.Store, timeout time.Duration) *UserService {
	return &UserService{base: newBase(store, timeout)}
}

func cleanDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", invalid("display name cannot be empty")
	}
	if len([]rune(name)) > maxDisplayNameLength {
		return "", invalid("display name too long (max %d characters)", maxDisplayNameLength)
	}
	return name, nil
}

// CreateProfile stores the profile paired with a new identity at signup.
// Points and claim count start at zero.
func (s *UserService) CreateProfile(ctx context.Context, userID, email, displayName string) (*models.User, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthenticated
	}
	name, err := cleanDisplayName(displayName)
	if err != nil {
		return nil, err
	}
	email = strings.TrimSpace(email)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, invalid("email is not valid")
		}
	}

	user := &models.User{
		ID:          userID,
		Email:       email,
		DisplayName: name,
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		return duplicate(tx.CreateUser(ctx, user))
	})
	if err != nil {
		return nil, classify(err)
	}
	utils.Sugar.Infof("👤 profile created: %s", userID)
	return user, nil
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	user, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, classify(err)
	}
	return user, nil
}

func (s *UserService) UpdateDisplayName(ctx context.Context, userID, displayName string) (*models.User, error) {
	name, err := cleanDisplayName(displayName)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	var user *models.User
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		user, err = tx.LockUser(ctx, userID)
		if err != nil {
			return notFound(err, ErrUserNotFound)
		}
		user.DisplayName = name
		return tx.SaveUser(ctx, user)
	})
	if err != nil {
		return nil, classify(err)
	}
	return user, nil
}

// Leaderboard ranks users by total points, highest first. limit <= 0 means the default size.
func (s *UserService) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}
	if limit > maxLeaderboardSize {
		limit = maxLeaderboardSize
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	users, err := s.store.TopUsers(ctx, limit)
	if err != nil {
		return nil, classify(err)
	}
	entries := make([]models.LeaderboardEntry, len(users))
	for i, u := range users {
		entries[i] = models.LeaderboardEntry{
			Rank:        i + 1,
			UserID:      u.ID,
			DisplayName: u.DisplayName,
			TotalPoints: u.TotalPoints,
		}
	}
	return entries, nil
}
