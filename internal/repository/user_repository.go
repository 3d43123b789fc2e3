package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/iliyamo/moviestore/internal/errs"
	"github.com/iliyamo/moviestore/internal/model"
	"github.com/iliyamo/moviestore/internal/query"
	"github.com/iliyamo/moviestore/internal/utils"
)

// UserRepo provides access to the `users` table.  Passwords are stored as
// bcrypt hashes with the configured cost.
type UserRepo struct {
	p    *Planner
	cost int
}

func NewUserRepo(p *Planner, bcryptCost int) *UserRepo { return &UserRepo{p: p, cost: bcryptCost} }

// Register inserts a new non-admin user and returns it with its id.  An
// empty password leaves the credential unset.  A taken username surfaces
// as *errs.ConstraintViolation.
func (r *UserRepo) Register(ctx context.Context, username, password string) (model.User, error) {
	u := model.User{Username: strings.TrimSpace(username)}
	if password != "" {
		hash, err := utils.HashPassword(password, r.cost)
		if err != nil {
			return model.User{}, err
		}
		u.Password = hash
	}
	row, err := r.p.Insert(ctx, model.Users, u.Values())
	if err != nil {
		return model.User{}, err
	}
	return model.UserFromValues(row), nil
}

// GetByID returns errs.ErrNotFound when no user has id.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (model.User, error) {
	return r.first(ctx, query.FieldEq("userId", id))
}

// GetByUsername fetches a user by exact username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	return r.first(ctx, query.FieldEq("username", strings.TrimSpace(username)))
}

// SetAdmin changes the admin flag and returns the updated user.
func (r *UserRepo) SetAdmin(ctx context.Context, id int64, admin bool) (model.User, error) {
	rows, err := r.p.Update(ctx, model.Users, query.FieldEq("userId", id), model.Values{"isAdmin": admin})
	if err != nil {
		return model.User{}, err
	}
	if len(rows) == 0 {
		return model.User{}, errs.ErrNotFound
	}
	return model.UserFromValues(rows[0]), nil
}

// Authenticate checks a username/password pair.
func (r *UserRepo) Authenticate(ctx context.Context, username, password string) (model.User, error) {
	u, err := r.GetByUsername(ctx, username)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return model.User{}, ErrInvalidCredentials
	case err != nil:
		return model.User{}, err
	}
	if u.Password == "" || !utils.VerifyPassword(u.Password, password) {
		return model.User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (r *UserRepo) first(ctx context.Context, where query.Predicate) (model.User, error) {
	rows, err := r.p.Select(query.Select{Entity: model.Users, Where: where, Limit: 1})
	if err != nil {
		return model.User{}, err
	}
	for v, err := range rows.All(ctx) {
		if err != nil {
			return model.User{}, err
		}
		return model.UserFromValues(v), nil
	}
	return model.User{}, errs.ErrNotFound
}
