package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-repository-kit/pkg/testsupport"
	"github.com/goliatone/go-repository-kit/request"
)

type keyless struct {
	bun.BaseModel `bun:"table:keyless"`

	ID   int64  `bun:"id"`
	Name string `bun:"name"`
}

type compositeKey struct {
	bun.BaseModel `bun:"table:memberships"`

	UserID  int64 `bun:"user_id,pk"`
	GroupID int64 `bun:"group_id,pk"`
}

type OrderLine struct {
	ID int64 `bun:"id,pk,autoincrement"`
}

func TestNew_ContractViolation(t *testing.T) {
	db := testsupport.OpenDB(t)

	if _, err := New[int](db); !IsContractViolation(err) {
		t.Errorf("New[int]() error = %v", err)
	}
	if _, err := New[keyless](db); !IsContractViolation(err) {
		t.Errorf("New[keyless]() error = %v", err)
	}
	if _, err := New[compositeKey](db); !IsContractViolation(err) {
		t.Errorf("New[compositeKey]() error = %v", err)
	}
}

func TestNew_NilDB(t *testing.T) {
	if _, err := New[User](nil); !IsInvalidArgument(err) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestNew_EntityTag(t *testing.T) {
	db := testsupport.OpenDB(t)

	tests := []struct {
		name string
		got  func() (string, error)
		want string
	}{
		{name: "user", want: "user", got: func() (string, error) {
			r, err := New[User](db)
			if err != nil {
				return "", err
			}
			return r.Entity(), nil
		}},
		{name: "camel case", want: "order_line", got: func() (string, error) {
			r, err := New[OrderLine](db)
			if err != nil {
				return "", err
			}
			return r.Entity(), nil
		}},
		{name: "override", want: "members", got: func() (string, error) {
			r, err := New[User](db, WithEntityTag("members"))
			if err != nil {
				return "", err
			}
			return r.Entity(), nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.got()
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("entity = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := New[User](db, WithEntityTag("")); !IsInvalidArgument(err) {
		t.Errorf("empty entity tag: got %v", err)
	}
}

func TestNew_Relations(t *testing.T) {
	db := testsupport.OpenDB(t)

	tests := []struct {
		name      string
		relations []Relation
		wantErr   bool
	}{
		{name: "flat", relations: Relations("Posts")},
		{name: "nested", relations: RelationMap(map[string][]string{"Posts": {"Comments"}})},
		{name: "unknown", relations: Relations("Friends"), wantErr: true},
		{name: "unknown nested", relations: []Relation{{Name: "Posts", Nested: []string{"Likes"}}}, wantErr: true},
		{name: "too deep", relations: []Relation{{Name: "Posts", Nested: []string{"Comments.Author"}}}, wantErr: true},
		{name: "empty nested", relations: []Relation{{Name: "Posts", Nested: []string{""}}}, wantErr: true},
		{name: "empty name", relations: []Relation{{}}, wantErr: true},
		{name: "duplicate", relations: Relations("Posts", "Posts"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New[User](db, WithRelations(tt.relations...))
			if tt.wantErr {
				if !IsMalformedExtension(err) {
					t.Fatalf("expected malformed extension, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
		})
	}
}

func TestNew_ExtensionTypes(t *testing.T) {
	db := testsupport.OpenDB(t)

	postTransformer := TransformerFunc[testsupport.Post](func(context.Context, *testsupport.Post) (any, error) { return nil, nil })
	if _, err := New[User](db, WithTransformer(postTransformer)); !IsContractViolation(err) {
		t.Errorf("mismatched transformer: got %v", err)
	}
	if _, err := New[User](db, WithMutator("not a mutator")); !IsContractViolation(err) {
		t.Errorf("mismatched mutator: got %v", err)
	}
}

func TestMustNew_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic")
		}
	}()
	MustNew[keyless](testsupport.OpenDB(t))
}

func TestScoped_DoesNotLeak(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 6)
	f.repo.PushCriteria(activeUsers())

	scoped := f.repo.Scoped()
	scoped.PushCriteria(olderThan(2)).SkipTransformer(true).Cachable("scoped", nil, 0)

	if len(f.repo.Criteria()) != 1 {
		t.Errorf("parent criteria = %d, want 1", len(f.repo.Criteria()))
	}
	if f.repo.CacheDirective().Active {
		t.Error("parent cache directive changed")
	}

	res, err := scoped.All(ctx)
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if want := []string{"user-05"}; len(res.Items) != 1 || res.Items[0].Name != want[0] {
		t.Errorf("scoped got %v, want %v", names(res.Items), want)
	}

	res, err = f.repo.All(ctx)
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(res.Items) != 3 {
		t.Errorf("parent got %v", names(res.Items))
	}
}

func TestForRequest(t *testing.T) {
	f := newFixture(t, 1)
	if f.repo.Request() != nil {
		t.Fatal("no request bound by default")
	}

	req := request.NewStatic("users", map[string]string{"page": "2"})
	if f.repo.ForRequest(req).Request() != req {
		t.Error("ForRequest did not bind the request")
	}
	if f.repo.DB() != f.db {
		t.Error("DB() returned a different handle")
	}
}

func TestDatabaseErrorsPropagate(t *testing.T) {
	sqldb, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	repo, err := New[User](db)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	boom := errors.New("connection reset")
	mock.ExpectQuery("SELECT").WillReturnError(boom)
	if _, err := repo.All(context.Background()); !errors.Is(err, boom) {
		t.Errorf("All() error = %v, want %v", err, boom)
	}

	mock.ExpectExec("DELETE").WillReturnError(boom)
	if _, err := repo.Delete(context.Background(), 1); !errors.Is(err, boom) {
		t.Errorf("Delete() error = %v, want %v", err, boom)
	}

	if !repoQueryIsFresh(repo) {
		t.Error("scope not reset after a failed read")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func repoQueryIsFresh(r *Repository[User]) bool {
	return r.Query() != nil && len(*r.dest) == 0
}
