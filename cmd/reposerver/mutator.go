package main

import (
	"context"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/go-viper/mapstructure/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-repository-kit/repository"
)

// userInput is what clients may write on a user.
type userInput struct {
	Name   string `mapstructure:"name"`
	Email  string `mapstructure:"email"`
	Status string `mapstructure:"status"`
}

func (in userInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 120)),
		validation.Field(&in.Email, validation.Required, is.EmailFormat),
		validation.Field(&in.Status, validation.In("active", "inactive")),
	)
}

// userMutator validates user writes before they reach the database.
type userMutator struct {
	db bun.IDB
}

var _ repository.Mutator[User] = userMutator{}

func (m userMutator) Create(ctx context.Context, attrs repository.Attributes) (*User, error) {
	in := userInput{Status: "active"}
	if _, err := decodeInput(attrs, &in); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, goerrors.FromOzzoValidation(err, "invalid user")
	}

	u := &User{Name: in.Name, Email: in.Email, Status: in.Status}
	if _, err := m.db.NewInsert().Model(u).Returning("*").Exec(ctx); err != nil {
		return nil, err
	}
	return u, nil
}

func (m userMutator) Update(ctx context.Context, u *User, attrs repository.Attributes) (bool, error) {
	in := userInput{Name: u.Name, Email: u.Email, Status: u.Status}
	columns, err := decodeInput(attrs, &in)
	if err != nil {
		return false, err
	}
	if len(columns) == 0 {
		return false, nil
	}
	if err := in.Validate(); err != nil {
		return false, goerrors.FromOzzoValidation(err, "invalid user")
	}

	u.Name, u.Email, u.Status = in.Name, in.Email, in.Status
	res, err := m.db.NewUpdate().Model(u).Column(columns...).WherePK().Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// decodeInput decodes attrs onto in and returns the written keys, sorted.
func decodeInput(attrs repository.Attributes, in *userInput) ([]string, error) {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      in,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(map[string]any(attrs)); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid user attributes")
	}

	columns := make([]string, 0, len(attrs))
	for key := range attrs {
		columns = append(columns, key)
	}
	sort.Strings(columns)
	return columns, nil
}
