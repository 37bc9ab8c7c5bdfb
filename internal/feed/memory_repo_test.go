package feed

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/platfeed/internal/model"
	"github.com/hitoshi/platfeed/internal/repository"
)

// memoryPostRepo はフィールド単位の原子的更新を再現するインメモリ実装。
type memoryPostRepo struct {
	mu      sync.Mutex
	posts   map[string]*model.Post
	authors map[string]*model.Author
	clock   time.Time

	// 障害注入用
	toggleErr  error
	commentErr error
	createErr  error
	findCalls  int
}

var _ repository.PostRepository = (*memoryPostRepo)(nil)

func newMemoryPostRepo() *memoryPostRepo {
	return &memoryPostRepo{
		posts:   make(map[string]*model.Post),
		authors: make(map[string]*model.Author),
		clock:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (r *memoryPostRepo) addAuthor(id, username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.authors[id] = &model.Author{ID: id, Username: username, FullName: username + " full"}
}

func (r *memoryPostRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *memoryPostRepo) snapshot(p *model.Post) *model.Post {
	cp := *p
	cp.Likes = append([]string{}, p.Likes...)
	cp.Comments = append([]model.Comment{}, p.Comments...)
	if a, ok := r.authors[p.AuthorID]; ok {
		author := *a
		cp.Author = &author
	}
	return &cp
}

func (r *memoryPostRepo) ListByPlatform(_ context.Context, platform model.Platform, limit int) ([]*model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Post
	for _, p := range r.posts {
		if p.Platform == platform {
			out = append(out, r.snapshot(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryPostRepo) FindByID(_ context.Context, id string) (*model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findCalls++
	p, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	return r.snapshot(p), nil
}

func (r *memoryPostRepo) Create(_ context.Context, post *model.Post) (*model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	p := *post
	p.ID = uuid.NewString()
	p.CreatedAt = r.tick()
	p.Likes = []string{}
	p.Comments = []model.Comment{}
	r.posts[p.ID] = &p
	return r.snapshot(&p), nil
}

func (r *memoryPostRepo) ToggleLike(_ context.Context, postID, userID string) ([]string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.toggleErr != nil {
		return nil, false, r.toggleErr
	}
	p, ok := r.posts[postID]
	if !ok {
		return nil, false, repository.ErrPostNotFound
	}
	for i, id := range p.Likes {
		if id == userID {
			p.Likes = append(p.Likes[:i:i], p.Likes[i+1:]...)
			return append([]string{}, p.Likes...), false, nil
		}
	}
	p.Likes = append(p.Likes, userID)
	return append([]string{}, p.Likes...), true, nil
}

func (r *memoryPostRepo) AppendComment(_ context.Context, comment *model.Comment) (*model.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.commentErr != nil {
		return nil, r.commentErr
	}
	p, ok := r.posts[comment.PostID]
	if !ok {
		return nil, repository.ErrPostNotFound
	}
	c := *comment
	c.ID = uuid.NewString()
	c.CreatedAt = r.tick()
	if a, ok := r.authors[c.UserID]; ok {
		author := *a
		c.User = &author
	}
	p.Comments = append(p.Comments, c)
	return &c, nil
}

// insertPost はプラットフォームと作成日時を指定して投稿を直接登録する。
func (r *memoryPostRepo) insertPost(platform model.Platform, authorID string) *model.Post {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := &model.Post{
		ID:        uuid.NewString(),
		AuthorID:  authorID,
		Platform:  platform,
		Content:   "seed",
		Likes:     []string{},
		Comments:  []model.Comment{},
		CreatedAt: r.tick(),
	}
	r.posts[p.ID] = p
	return r.snapshot(p)
}

var errStoreDown = errors.New("store unavailable")

// publishedEvent は記録されたイベント。
type publishedEvent struct {
	Platform model.Platform
	Event    string
	Payload  any
}

// recordingPublisher は配信されたイベントを記録する。
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(platform model.Platform, event string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Platform: platform, Event: event, Payload: payload})
}

func (p *recordingPublisher) all() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent{}, p.events...)
}

// passthroughSanitizer は前後の空白のみ除去する。
type passthroughSanitizer struct{}

func (passthroughSanitizer) Sanitize(s string) string {
	return strings.TrimSpace(s)
}

// mockImageValidator はvalidateFnが未設定の場合すべて許可する。
type mockImageValidator struct {
	validateFn func(dataURL string) error
}

func (m *mockImageValidator) Validate(dataURL string) error {
	if m.validateFn != nil {
		return m.validateFn(dataURL)
	}
	return nil
}

// countingMetrics は記録回数を数える。
type countingMetrics struct {
	mu       sync.Mutex
	posts    int
	likes    int
	unlikes  int
	comments int
}

func (m *countingMetrics) RecordPostCreated(model.Platform) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts++
}

func (m *countingMetrics) RecordLikeToggled(_ model.Platform, liked bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if liked {
		m.likes++
	} else {
		m.unlikes++
	}
}

func (m *countingMetrics) RecordCommentAdded(model.Platform) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.comments++
}
