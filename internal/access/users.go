package access

import (
	"context"
	"strconv"

	"github.com/iliyamo/moviestore/internal/model"
)

// RegisterUser creates a non-admin user.
func (s *Service) RegisterUser(ctx context.Context, username, password string) (model.User, error) {
	return s.users.Register(ctx, username, password)
}

// GetUser returns one user by id, without the password hash.  The cached
// copy is a field map that never holds the hash.
func (s *Service) GetUser(ctx context.Context, id int64) (model.User, error) {
	key := userKey(id)
	if u, ok := s.cachedUser(ctx, key); ok {
		return u, nil
	}
	fence, fill := s.fence(ctx, key)
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	u.Password = ""
	if fill {
		if _, err := s.cache.SetFieldsFenced(ctx, key, userFields(u), fence); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("cache fill failed")
		}
	}
	return u, nil
}

// SetAdmin changes a user's admin flag and returns the updated user.
func (s *Service) SetAdmin(ctx context.Context, id int64, admin bool) (model.User, error) {
	u, err := s.users.SetAdmin(ctx, id, admin)
	if err != nil {
		return model.User{}, err
	}
	s.invalidate(ctx, "admin flag changed", userKey(id))
	u.Password = ""
	return u, nil
}

// Authenticate checks credentials against the store.  It never uses the
// cache, which does not hold password hashes.
func (s *Service) Authenticate(ctx context.Context, username, password string) (model.User, error) {
	u, err := s.users.Authenticate(ctx, username, password)
	if err != nil {
		return model.User{}, err
	}
	u.Password = ""
	return u, nil
}

func (s *Service) cachedUser(ctx context.Context, key string) (model.User, bool) {
	if s.cache == nil {
		return model.User{}, false
	}
	f, err := s.cache.GetFields(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("cache read failed; using store")
		return model.User{}, false
	}
	if len(f) == 0 {
		return model.User{}, false
	}
	id, err1 := strconv.ParseInt(f["userId"], 10, 64)
	admin, err2 := strconv.ParseBool(f["isAdmin"])
	if err1 != nil || err2 != nil || f["username"] == "" {
		s.log.Warn().Str("key", key).Msg("discarding partial cache entry")
		return model.User{}, false
	}
	return model.User{UserID: id, Username: f["username"], IsAdmin: admin}, true
}

func userFields(u model.User) map[string]string {
	return map[string]string{
		"userId":   strconv.FormatInt(u.UserID, 10),
		"username": u.Username,
		"isAdmin":  strconv.FormatBool(u.IsAdmin),
	}
}

// RecordComment stores a comment.  The author must exist.
func (s *Service) RecordComment(ctx context.Context, c model.Comment) (model.Comment, error) {
	return s.comments.Create(ctx, c)
}

// CommentsByUser returns the payloads of a user's comments, oldest first.
func (s *Service) CommentsByUser(ctx context.Context, userID int64) ([]string, error) {
	return s.comments.PayloadsByUser(ctx, userID)
}

// CommentsWithAuthors lists every comment once with its author, or a nil
// author when the user does not exist.  A non-zero userID filters.
func (s *Service) CommentsWithAuthors(ctx context.Context, userID int64) ([]model.CommentWithAuthor, error) {
	return s.comments.ListWithAuthors(ctx, userID)
}
