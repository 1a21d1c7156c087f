package post

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/teammate/internal/model"
	"github.com/hitoshi/teammate/internal/repository"
	"github.com/hitoshi/teammate/internal/security"
)

type mockPostRepo struct {
	createFn   func(ctx context.Context, post *model.Post) error
	findByIDFn func(ctx context.Context, id string) (*model.Post, error)
	listFn     func(ctx context.Context, query string, limit int) ([]model.PostWithAuthor, error)
}

func (m *mockPostRepo) Create(ctx context.Context, post *model.Post) error {
	if m.createFn != nil {
		return m.createFn(ctx, post)
	}
	return nil
}

func (m *mockPostRepo) FindByID(ctx context.Context, id string) (*model.Post, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockPostRepo) List(ctx context.Context, query string, limit int) ([]model.PostWithAuthor, error) {
	if m.listFn != nil {
		return m.listFn(ctx, query, limit)
	}
	return nil, nil
}

var _ repository.PostRepository = (*mockPostRepo)(nil)

func newTestService(repo repository.PostRepository) *Service {
	return NewService(repo, security.NewContentSanitizer())
}

func TestCreate_ValidInput_CreatesPost(t *testing.T) {
	var created *model.Post
	repo := &mockPostRepo{
		createFn: func(ctx context.Context, post *model.Post) error {
			created = post
			return nil
		},
	}
	svc := newTestService(repo)

	post, err := svc.Create(context.Background(), "user-1", "一緒にWebサービスを作りませんか", "Goでバックエンドを書ける人を募集しています。")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if post.ID == "" {
		t.Error("expected non-empty post ID")
	}
	if post.UserID != "user-1" {
		t.Errorf("userID = %q, want %q", post.UserID, "user-1")
	}
	if post.Title != "一緒にWebサービスを作りませんか" {
		t.Errorf("title = %q", post.Title)
	}
	if created == nil {
		t.Fatal("expected post to be persisted")
	}
	if created.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
}

func TestCreate_EmptyTitle_ReturnsEmptyTitleError(t *testing.T) {
	svc := newTestService(&mockPostRepo{})

	tests := []struct {
		name  string
		title string
	}{
		{"空文字列", ""},
		{"空白のみ", "   "},
		{"タグのみ", "<script>alert('x')</script>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), "user-1", tt.title, "本文")

			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.Code != model.ErrCodeEmptyTitle {
				t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeEmptyTitle)
			}
		})
	}
}

func TestCreate_BodyIsSanitized(t *testing.T) {
	var created *model.Post
	repo := &mockPostRepo{
		createFn: func(ctx context.Context, post *model.Post) error {
			created = post
			return nil
		},
	}
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), "user-1", "タイトル",
		`<p>説明</p><script>alert('xss')</script>`)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if strings.Contains(created.Body, "<script") || strings.Contains(created.Body, "alert") {
		t.Errorf("body = %q, script must be removed", created.Body)
	}
	if !strings.Contains(created.Body, "<p>説明</p>") {
		t.Errorf("body = %q, allowed tags must be kept", created.Body)
	}
}

func TestCreate_TitleTagsAreStripped(t *testing.T) {
	var created *model.Post
	repo := &mockPostRepo{
		createFn: func(ctx context.Context, post *model.Post) error {
			created = post
			return nil
		},
	}
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), "user-1", "<strong>タイトル</strong>", "本文")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.Title != "タイトル" {
		t.Errorf("title = %q, tags must be stripped from titles", created.Title)
	}
}

func TestCreate_LongTitle_IsTruncated(t *testing.T) {
	var created *model.Post
	repo := &mockPostRepo{
		createFn: func(ctx context.Context, post *model.Post) error {
			created = post
			return nil
		},
	}
	svc := newTestService(repo)

	long := strings.Repeat("あ", 300)
	if _, err := svc.Create(context.Background(), "user-1", long, "本文"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if got := len([]rune(created.Title)); got != 200 {
		t.Errorf("title length = %d runes, want 200", got)
	}
}

func TestCreate_RepositoryError_ReturnsError(t *testing.T) {
	repo := &mockPostRepo{
		createFn: func(ctx context.Context, post *model.Post) error {
			return errors.New("insert failed")
		},
	}
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), "user-1", "タイトル", "本文")
	if err == nil {
		t.Fatal("expected error when insert fails")
	}
}

func TestGet_ExistingPost_ReturnsPost(t *testing.T) {
	repo := &mockPostRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Post, error) {
			return &model.Post{ID: id, Title: "タイトル", CreatedAt: time.Now()}, nil
		},
	}
	svc := newTestService(repo)

	post, err := svc.Get(context.Background(), "post-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if post.ID != "post-1" {
		t.Errorf("post ID = %q, want %q", post.ID, "post-1")
	}
}

func TestGet_MissingPost_ReturnsPostNotFoundError(t *testing.T) {
	svc := newTestService(&mockPostRepo{})

	_, err := svc.Get(context.Background(), "missing-post")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodePostNotFound {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodePostNotFound)
	}
}

func TestList_ReturnsPostsFromRepository(t *testing.T) {
	repo := &mockPostRepo{
		listFn: func(ctx context.Context, query string, limit int) ([]model.PostWithAuthor, error) {
			return []model.PostWithAuthor{
				{Post: model.Post{ID: "post-2", Title: "新しい投稿"}},
				{Post: model.Post{ID: "post-1", Title: "古い投稿"}},
			}, nil
		},
	}
	svc := newTestService(repo)

	posts := svc.List(context.Background(), "")
	if len(posts) != 2 {
		t.Fatalf("len(posts) = %d, want 2", len(posts))
	}
	if posts[0].ID != "post-2" {
		t.Errorf("first post = %q, want newest first", posts[0].ID)
	}
}

func TestList_PassesTrimmedQuery(t *testing.T) {
	gotQuery := ""
	repo := &mockPostRepo{
		listFn: func(ctx context.Context, query string, limit int) ([]model.PostWithAuthor, error) {
			gotQuery = query
			return nil, nil
		},
	}
	svc := newTestService(repo)

	svc.List(context.Background(), "  golang  ")
	if gotQuery != "golang" {
		t.Errorf("query = %q, want %q", gotQuery, "golang")
	}
}

func TestList_ReadError_ReturnsEmptyList(t *testing.T) {
	repo := &mockPostRepo{
		listFn: func(ctx context.Context, query string, limit int) ([]model.PostWithAuthor, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := newTestService(repo)

	// 読み取り障害は一覧画面を壊さず空リストに縮退する
	posts := svc.List(context.Background(), "")
	if posts == nil {
		t.Fatal("expected non-nil empty list on read error")
	}
	if len(posts) != 0 {
		t.Errorf("len(posts) = %d, want 0", len(posts))
	}
}

func TestList_NilResult_ReturnsEmptyList(t *testing.T) {
	svc := newTestService(&mockPostRepo{})

	posts := svc.List(context.Background(), "")
	if posts == nil {
		t.Fatal("expected non-nil empty list")
	}
}
