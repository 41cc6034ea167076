package service

import (
	"context"
	"strings"

	"chatapp/internal/domain"
)

const searchLimit = 20

type UserService struct {
	users domain.UserRepository
}

func NewUserService(users domain.UserRepository) *UserService {
	return &UserService{users: users}
}

func (s *UserService) Get(ctx context.Context, id string) (*PublicUser, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, domain.WrapStore("get user", err)
	}
	return ToPublicUser(u), nil
}

// Search finds other users by username or email fragment.
func (s *UserService) Search(ctx context.Context, callerID, query string) ([]*PublicUser, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, invalid("search query is required")
	}
	users, err := s.users.Search(ctx, query, callerID, searchLimit)
	if err != nil {
		return nil, domain.WrapStore("search users", err)
	}
	res := make([]*PublicUser, 0, len(users))
	for _, u := range users {
		res = append(res, ToPublicUser(u))
	}
	return res, nil
}

func (s *UserService) SetStatus(ctx context.Context, id string, status domain.Status) error {
	return domain.WrapStore("set user status", s.users.SetStatus(ctx, id, status))
}

// ResetStatuses marks everyone offline; called at startup when no connection can be live.
func (s *UserService) ResetStatuses(ctx context.Context) error {
	return domain.WrapStore("reset user statuses", s.users.ResetStatuses(ctx))
}
