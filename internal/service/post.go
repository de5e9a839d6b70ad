package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"bapmate/internal/model"
	"bapmate/internal/repository"
)

// PostService is the post registry.
type PostService struct {
	postRepo    repository.PostRepository
	requestRepo repository.RequestRepository
	userRepo    repository.UserRepository
	db          *sqlx.DB
}

func NewPostService(
	postRepo repository.PostRepository,
	requestRepo repository.RequestRepository,
	userRepo repository.UserRepository,
	db *sqlx.DB,
) *PostService {
	return &PostService{
		postRepo:    postRepo,
		requestRepo: requestRepo,
		userRepo:    userRepo,
		db:          db,
	}
}

// Create publishes a new open post. The location was canonicalised when the
// request body was parsed.
func (s *PostService) Create(ctx context.Context, authorID string, req model.CreatePostRequest) (*model.Post, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, model.ErrTitleRequired
	}
	if utf8.RuneCountInString(title) > model.MaxPostTitleLength {
		return nil, model.ErrTitleTooLong
	}
	if req.MaxParticipants < 0 {
		return nil, model.ErrInvalidCapacity
	}

	region := req.Location.Region
	if strings.TrimSpace(region) == "" {
		region = model.OtherRegion
	}

	post := &model.Post{
		ID:              uuid.NewString(),
		AuthorID:        authorID,
		Title:           title,
		MaxParticipants: req.MaxParticipants,
		Status:          model.PostStatusOpen,
		Region:          region,
		Lat:             req.Location.Lat,
		Lng:             req.Location.Lng,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	log.Printf("[PostService] Created post=%s author=%s region=%s", post.ID, authorID, region)

	s.attachAuthor(ctx, post)
	return post, nil
}

// GetByID retrieves a single post with its author.
func (s *PostService) GetByID(ctx context.Context, postID string) (*model.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	s.attachAuthor(ctx, post)
	return post, nil
}

// List returns posts newest first, older than before when set.
func (s *PostService) List(ctx context.Context, before *time.Time, limit int) (*model.PostListResponse, error) {
	if limit <= 0 {
		limit = model.DefaultPostListSize
	}
	if limit > model.MaxPostListSize {
		limit = model.MaxPostListSize
	}

	posts, err := s.postRepo.List(ctx, before, limit)
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []model.Post{}
	}

	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.AuthorID)
	}
	if authors, err := s.userRepo.GetSummaries(ctx, ids); err != nil {
		log.Printf("[PostService] Failed to load authors: %v", err)
	} else {
		byID := make(map[string]model.UserSummary, len(authors))
		for _, a := range authors {
			byID[a.ID] = a
		}
		for i := range posts {
			if a, ok := byID[posts[i].AuthorID]; ok {
				posts[i].Author = &a
			}
		}
	}

	return &model.PostListResponse{Posts: posts}, nil
}

// Delete removes a post owned by userID together with its requests. Chat rooms
// opened from the post outlive it.
func (s *PostService) Delete(ctx context.Context, postID, userID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Transient(fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback()

	post, err := s.postRepo.GetForUpdate(ctx, tx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != userID {
		return model.ErrNotPostOwner
	}
	if err := s.requestRepo.DeleteByPost(ctx, tx, postID); err != nil {
		return err
	}
	if err := s.postRepo.Delete(ctx, tx, postID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return model.Transient(fmt.Errorf("commit transaction: %w", err))
	}

	log.Printf("[PostService] Deleted post=%s", postID)
	return nil
}

func (s *PostService) attachAuthor(ctx context.Context, post *model.Post) {
	author, err := s.userRepo.GetByID(ctx, post.AuthorID)
	if err != nil {
		return
	}
	post.Author = &model.UserSummary{ID: author.ID, Name: author.Name, Color: author.Color}
}
