package repository

import (
	"context"

	"github.com/iliyamo/moviestore/internal/model"
	"github.com/iliyamo/moviestore/internal/query"
)

// CommentRepo provides access to the `comments` table.
type CommentRepo struct{ p *Planner }

func NewCommentRepo(p *Planner) *CommentRepo { return &CommentRepo{p: p} }

// Create inserts a comment.  The author must exist; otherwise the backend's
// foreign key rejects the row with *errs.ConstraintViolation.
func (r *CommentRepo) Create(ctx context.Context, c model.Comment) (model.Comment, error) {
	row, err := r.p.Insert(ctx, model.Comments, c.Values())
	if err != nil {
		return model.Comment{}, err
	}
	return model.CommentFromValues(row), nil
}

// PayloadsByUser returns only the payload column of a user's comments,
// oldest first.
func (r *CommentRepo) PayloadsByUser(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.p.Select(query.Select{
		Entity:  model.Comments,
		Fields:  []string{"payload"},
		Where:   query.FieldEq("userId", userID),
		OrderBy: []query.Order{query.Asc("commentId")},
	})
	if err != nil {
		return nil, err
	}
	var out []string
	for v, err := range rows.All(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, model.Text(v, "payload"))
	}
	return out, nil
}

// ListWithAuthors left-joins comments with users on userId.  Every comment
// appears exactly once; Author is nil when the user does not exist.  A
// non-zero userID restricts the result to that user's comments.
func (r *CommentRepo) ListWithAuthors(ctx context.Context, userID int64) ([]model.CommentWithAuthor, error) {
	j := query.Join{
		Left:        model.Comments,
		Right:       model.Users,
		LeftKey:     "userId",
		RightKey:    "userId",
		Kind:        query.LeftOuter,
		RightFields: []string{"userId", "username", "isAdmin"},
	}
	if userID != 0 {
		j.Where = query.FieldEq("userId", userID)
	}
	rows, err := r.p.Join(j)
	if err != nil {
		return nil, err
	}
	var out []model.CommentWithAuthor
	for row, err := range rows.All(ctx) {
		if err != nil {
			return nil, err
		}
		cw := model.CommentWithAuthor{Comment: model.CommentFromValues(row.Left)}
		if row.Matched {
			u := model.UserFromValues(row.Right)
			cw.Author = &u
		}
		out = append(out, cw)
	}
	return out, nil
}
