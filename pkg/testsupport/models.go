package testsupport

import (
	"context"
	"fmt"
	"testing"

	"github.com/uptrace/bun"
)

// User is the model repository tests run against.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID     int64   `bun:"id,pk,autoincrement" json:"id"`
	Name   string  `bun:"name,notnull" json:"name"`
	Email  string  `bun:"email" json:"email"`
	Age    int     `bun:"age" json:"age"`
	Status string  `bun:"status" json:"status"`
	Posts  []*Post `bun:"rel:has-many,join:id=user_id" json:"posts,omitempty"`

	Counts map[string]int `bun:"-" json:"counts,omitempty"`
}

// SetRelationCount records a relation count loaded by a preparer.
func (u *User) SetRelationCount(name string, n int) {
	if u.Counts == nil {
		u.Counts = map[string]int{}
	}
	u.Counts[name] = n
}

// Post belongs to a User.
type Post struct {
	bun.BaseModel `bun:"table:posts,alias:p"`

	ID       int64      `bun:"id,pk,autoincrement" json:"id"`
	UserID   int64      `bun:"user_id" json:"user_id"`
	Title    string     `bun:"title" json:"title"`
	Comments []*Comment `bun:"rel:has-many,join:id=post_id" json:"comments,omitempty"`
}

// Comment belongs to a Post.
type Comment struct {
	bun.BaseModel `bun:"table:comments,alias:c"`

	ID     int64  `bun:"id,pk,autoincrement" json:"id"`
	PostID int64  `bun:"post_id" json:"post_id"`
	Body   string `bun:"body" json:"body"`
}

// SetupUsers opens a database with the users, posts and comments tables.
func SetupUsers(t testing.TB) *bun.DB {
	t.Helper()
	db := OpenDB(t)
	CreateTables(t, db, (*User)(nil), (*Post)(nil), (*Comment)(nil))
	return db
}

// SeedUsers inserts n users named user-01, user-02... with age i-1 and
// alternating active/inactive status, starting with active.
func SeedUsers(t testing.TB, db bun.IDB, n int) []User {
	t.Helper()

	users := make([]User, n)
	for i := range users {
		status := "active"
		if i%2 == 1 {
			status = "inactive"
		}
		users[i] = User{
			Name:   fmt.Sprintf("user-%02d", i+1),
			Email:  fmt.Sprintf("user-%02d@example.com", i+1),
			Age:    i,
			Status: status,
		}
	}
	if n == 0 {
		return users
	}
	if _, err := db.NewInsert().Model(&users).Exec(context.Background()); err != nil {
		t.Fatalf("failed to seed users: %v", err)
	}
	return users
}

// SeedPosts inserts n posts for userID, each with one comment per post index.
func SeedPosts(t testing.TB, db bun.IDB, userID int64, n int) []Post {
	t.Helper()

	ctx := context.Background()
	posts := make([]Post, n)
	for i := range posts {
		posts[i] = Post{UserID: userID, Title: fmt.Sprintf("post-%d-%d", userID, i+1)}
	}
	if n == 0 {
		return posts
	}
	if _, err := db.NewInsert().Model(&posts).Exec(ctx); err != nil {
		t.Fatalf("failed to seed posts: %v", err)
	}

	var comments []Comment
	for i, p := range posts {
		for j := 0; j <= i; j++ {
			comments = append(comments, Comment{PostID: p.ID, Body: fmt.Sprintf("comment-%d", j+1)})
		}
	}
	if _, err := db.NewInsert().Model(&comments).Exec(ctx); err != nil {
		t.Fatalf("failed to seed comments: %v", err)
	}
	return posts
}
