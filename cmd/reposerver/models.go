package main

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-repository-kit/repository"
)

// User is the resource served under /users.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Email     string    `bun:"email,unique" json:"email"`
	Status    string    `bun:"status,nullzero,notnull,default:'active'" json:"status"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	Posts     []*Post   `bun:"rel:has-many,join:id=user_id" json:"posts,omitempty"`

	counts map[string]int
}

func (u *User) SetRelationCount(name string, n int) {
	if u.counts == nil {
		u.counts = map[string]int{}
	}
	u.counts[name] = n
}

// Post belongs to a User.
type Post struct {
	bun.BaseModel `bun:"table:posts,alias:p"`

	ID     int64  `bun:"id,pk,autoincrement" json:"id"`
	UserID int64  `bun:"user_id,notnull" json:"user_id"`
	Title  string `bun:"title,notnull" json:"title"`
	Body   string `bun:"body" json:"body"`
}

var models = []any{(*User)(nil), (*Post)(nil)}

type userView struct {
	ID        int64          `json:"id" msgpack:"id"`
	Name      string         `json:"name" msgpack:"name"`
	Email     string         `json:"email" msgpack:"email"`
	Status    string         `json:"status" msgpack:"status"`
	CreatedAt string         `json:"created_at" msgpack:"created_at"`
	Posts     []postView     `json:"posts,omitempty" msgpack:"posts,omitempty"`
	Counts    map[string]int `json:"counts,omitempty" msgpack:"counts,omitempty"`
}

type postView struct {
	ID    int64  `json:"id" msgpack:"id"`
	Title string `json:"title" msgpack:"title"`
}

// userTransformer renders users for the API.
var userTransformer = repository.TransformerFunc[User](func(_ context.Context, u *User) (any, error) {
	v := userView{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Status: u.Status,
		Counts: u.counts,
	}
	if !u.CreatedAt.IsZero() {
		v.CreatedAt = u.CreatedAt.UTC().Format(time.RFC3339)
	}
	for _, p := range u.Posts {
		v.Posts = append(v.Posts, postView{ID: p.ID, Title: p.Title})
	}
	return v, nil
})

// activeUsers limits reads to active users.
func activeUsers() repository.Criterion[User] {
	return repository.Named[User]("active", repository.CriterionFunc[User](func(q *bun.SelectQuery, _ *repository.Repository[User]) *bun.SelectQuery {
		return q.Where("?TableAlias.status = ?", "active")
	}))
}

// search matches users by name or email.
func search(term string) repository.Criterion[User] {
	return repository.Named[User]("search:"+term, repository.CriterionFunc[User](func(q *bun.SelectQuery, _ *repository.Repository[User]) *bun.SelectQuery {
		like := "%" + term + "%"
		return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.name LIKE ?", like).WhereOr("?TableAlias.email LIKE ?", like)
		})
	}))
}
