package services

import (
	"context"

	"cleanzone-api/models"
	"cleanzone-api/repositories"
)

type UserService struct {
	store *repositories.Store
}

func NewUserService(store *repositories.Store) *UserService {
	return &UserService{store: store}
}

func (s *UserService) Get(ctx context.Context, id uint32) (*models.User, error) {
	return s.store.Users.FindByID(ctx, id)
}

func (s *UserService) UpdateProfile(ctx context.Context, id uint32, req models.UpdateProfileRequest) (*models.User, error) {
	updates := map[string]interface{}{}
	if req.Name != nil {
		name, err := models.NewName(*req.Name)
		if err != nil {
			return nil, err
		}
		updates["name"] = name.String()
	}
	if req.AvatarURL != nil {
		if *req.AvatarURL == "" {
			updates["avatar_url"] = nil
		} else {
			url, err := models.NewUrl(*req.AvatarURL)
			if err != nil {
				return nil, err
			}
			updates["avatar_url"] = url.String()
		}
	}

	if len(updates) > 0 {
		if err := s.store.Users.Update(ctx, id, updates); err != nil {
			return nil, err
		}
	}
	return s.store.Users.FindByID(ctx, id)
}

func (s *UserService) Statistics(ctx context.Context, id uint32) (*models.StatisticsResponse, error) {
	if _, err := s.store.Users.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Statistics.ForUser(ctx, id)
}
