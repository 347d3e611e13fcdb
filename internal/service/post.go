package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/postboard/internal/apperror"
	"github.com/sakif/postboard/internal/model"
	"github.com/sakif/postboard/internal/repository"
)

type PostService struct {
	repo   repository.Repository[model.Post]
	logger *slog.Logger
}

func NewPostService(repo repository.Repository[model.Post], logger *slog.Logger) *PostService {
	return &PostService{repo: repo, logger: logger}
}

// CreatePost stores a new post. Its comment list always starts empty,
// whatever the caller sent.
func (s *PostService) CreatePost(ctx context.Context, in model.NewPost) (*model.Post, error) {
	if err := model.Validate(in); err != nil {
		return nil, err
	}

	post, err := s.repo.Create(ctx, &model.Post{
		Title:    in.Title,
		Content:  in.Content,
		Comments: []string{},
	})
	if err != nil {
		s.logger.Error("failed to create post", slog.String("title", in.Title), errAttr(err))
		return nil, fmt.Errorf("creating post: %w", err)
	}

	s.logger.Info("post created", slog.String("id", post.ID), slog.String("title", post.Title))
	return post, nil
}

func (s *PostService) List(ctx context.Context, filter repository.Filter) ([]model.Post, error) {
	posts, err := s.repo.FindMany(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list posts", errAttr(err))
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	return posts, nil
}

// GetByID returns apperror.ErrNotFound if the post doesn't exist.
func (s *PostService) GetByID(ctx context.Context, id string) (*model.Post, error) {
	id, err := requireID(id, "post")
	if err != nil {
		return nil, err
	}

	post, err := s.repo.FindOne(ctx, repository.ByID(id))
	if err != nil {
		return nil, fmt.Errorf("fetching post %s: %w", id, err)
	}
	if post == nil {
		return nil, apperror.NotFound("post", id)
	}
	return post, nil
}

// UpdatePost returns (nil, nil) when no such post exists.
func (s *PostService) UpdatePost(ctx context.Context, id string, patch model.PostPatch) (*model.Post, error) {
	id, err := requireID(id, "post")
	if err != nil {
		return nil, err
	}
	if err := model.Validate(patch); err != nil {
		return nil, err
	}

	post, err := s.repo.Update(ctx, repository.ByID(id), repository.Patch(patch.Fields()))
	if err != nil {
		s.logger.Error("failed to update post", slog.String("id", id), errAttr(err))
		return nil, fmt.Errorf("updating post %s: %w", id, err)
	}
	if post != nil {
		s.logger.Info("post updated", slog.String("id", id))
	}
	return post, nil
}

// DeletePost removes the post only; its comments stay where they are.
// Returns (nil, nil) when no such post exists.
func (s *PostService) DeletePost(ctx context.Context, id string) (*model.Post, error) {
	id, err := requireID(id, "post")
	if err != nil {
		return nil, err
	}

	post, err := s.repo.Remove(ctx, repository.ByID(id))
	if err != nil {
		return nil, fmt.Errorf("deleting post %s: %w", id, err)
	}
	if post != nil {
		s.logger.Info("post deleted", slog.String("id", id))
	}
	return post, nil
}
