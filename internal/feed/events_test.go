package feed

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/platfeed/internal/model"
)

func TestNewPostPayload_EmptyCollectionsEncodeAsArrays(t *testing.T) {
	p := &model.Post{
		ID:        "p1",
		Content:   "hello",
		AuthorID:  "u1",
		Author:    &model.Author{ID: "u1", Username: "alice", FullName: "Alice"},
		Platform:  model.PlatformTwitter,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	b, err := json.Marshal(NewPostPayload(p))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	body := string(b)
	for _, want := range []string{`"likes":[]`, `"comments":[]`, `"platform":"twitter"`, `"fullName":"Alice"`, `"createdAt":"2024-01-01T00:00:00Z"`} {
		if !strings.Contains(body, want) {
			t.Errorf("payload %s does not contain %s", body, want)
		}
	}
}

func TestNewCommentPayload_WireShape(t *testing.T) {
	c := &model.Comment{
		ID:        "c1",
		PostID:    "p1",
		UserID:    "u2",
		User:      &model.Author{ID: "u2", Username: "bob", FullName: "Bob"},
		Text:      "nice",
		CreatedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}

	b, err := json.Marshal(NewCommentPayload{PostID: "p1", Comment: NewCommentPayloadFrom(c)})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded["postId"] != "p1" {
		t.Errorf("postId = %v, want p1", decoded["postId"])
	}
	comment, ok := decoded["comment"].(map[string]any)
	if !ok {
		t.Fatalf("comment = %T, want object", decoded["comment"])
	}
	for _, key := range []string{"id", "user", "text", "createdAt"} {
		if _, ok := comment[key]; !ok {
			t.Errorf("comment missing key %q", key)
		}
	}
}

func TestNewPostPayloads_PreservesOrder(t *testing.T) {
	posts := []*model.Post{{ID: "b"}, {ID: "a"}}
	out := NewPostPayloads(posts)
	if len(out) != 2 || out[0].ID != "b" || out[1].ID != "a" {
		t.Errorf("payloads = %+v, want order b, a", out)
	}
}
