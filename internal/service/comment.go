package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/postboard/internal/model"
	"github.com/sakif/postboard/internal/repository"
)

// PostLookup is the one thing comments need from posts.
// *PostService satisfies it.
type PostLookup interface {
	GetByID(ctx context.Context, id string) (*model.Post, error)
}

var _ PostLookup = (*PostService)(nil)

type CommentService struct {
	repo   repository.Repository[model.Comment]
	posts  PostLookup
	logger *slog.Logger
}

func NewCommentService(repo repository.Repository[model.Comment], posts PostLookup, logger *slog.Logger) *CommentService {
	return &CommentService{repo: repo, posts: posts, logger: logger}
}

// CreateComment checks that the post exists, then stores the comment.
// A missing post surfaces as apperror.ErrNotFound and nothing is written.
// The check and the write are not atomic: a post deleted in between leaves
// an orphaned comment.
func (s *CommentService) CreateComment(ctx context.Context, in model.NewComment) (*model.Comment, error) {
	if err := model.Validate(in); err != nil {
		return nil, err
	}

	if _, err := s.posts.GetByID(ctx, in.PostID); err != nil {
		return nil, err
	}

	c, err := s.repo.Create(ctx, &model.Comment{PostID: in.PostID, Comment: in.Comment})
	if err != nil {
		s.logger.Error("failed to create comment", slog.String("postId", in.PostID), errAttr(err))
		return nil, fmt.Errorf("creating comment: %w", err)
	}

	s.logger.Info("comment created", slog.String("id", c.ID), slog.String("postId", c.PostID))
	return c, nil
}

// ListByPost returns the comments on a post. The post itself must exist.
func (s *CommentService) ListByPost(ctx context.Context, postID string) ([]model.Comment, error) {
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return nil, err
	}

	comments, err := s.repo.FindMany(ctx, repository.Filter{"postId": postID})
	if err != nil {
		return nil, fmt.Errorf("listing comments for post %s: %w", postID, err)
	}
	return comments, nil
}

// DeleteComment removes a comment by id without touching its post.
// Returns (nil, nil) when no such comment exists.
func (s *CommentService) DeleteComment(ctx context.Context, id string) (*model.Comment, error) {
	id, err := requireID(id, "comment")
	if err != nil {
		return nil, err
	}

	c, err := s.repo.Remove(ctx, repository.ByID(id))
	if err != nil {
		return nil, fmt.Errorf("deleting comment %s: %w", id, err)
	}
	if c != nil {
		s.logger.Info("comment deleted", slog.String("id", id))
	}
	return c, nil
}
