package common

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"newsbot/types"
)

type fakePutter struct {
	bucket, key, contentType string
	body                     []byte
	err                      error
}

func (f *fakePutter) Put(ctx context.Context, obj Object) error {
	if f.err != nil {
		return f.err
	}
	f.bucket, f.key, f.contentType, f.body = obj.Bucket, obj.Key, obj.ContentType, obj.Body
	return nil
}

func testArticle() *types.Article {
	return &types.Article{
		Hash:        "abc123",
		Link:        "https://example.com/a",
		Title:       "제목",
		Publisher:   "연합뉴스",
		PublishedAt: time.Date(2024, 5, 1, 14, 30, 0, 0, time.UTC),
		FetchedAt:   time.Date(2024, 5, 1, 15, 30, 0, 0, time.UTC),
	}
}

func TestArchiveWritesJSON(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)
	put := &fakePutter{}
	a := NewArchiver(put, "news-bucket", "/newsbot/", seoul)

	if err := a.Archive(context.Background(), types.Channel{Name: "breaking"}, testArticle()); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if put.bucket != "news-bucket" || put.contentType != "application/json" {
		t.Fatalf("put = %+v", put)
	}
	// 15:30 UTC is already the next day in Seoul
	if want := "newsbot/articles/breaking/2024-05-02/abc123.json"; put.key != want {
		t.Fatalf("key = %q; want %q", put.key, want)
	}

	var rec archiveRecord
	if err := json.Unmarshal(put.body, &rec); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if rec.Channel != "breaking" || rec.Title != "제목" || rec.Publisher != "연합뉴스" {
		t.Fatalf("record = %+v", rec)
	}
}

func TestArchiveWithoutPrefix(t *testing.T) {
	a := NewArchiver(&fakePutter{}, "b", "", nil)
	if got := a.Key("exclusive", testArticle()); got != "articles/exclusive/2024-05-01/abc123.json" {
		t.Fatalf("key = %q", got)
	}
}

func TestArchivePropagatesErrors(t *testing.T) {
	a := NewArchiver(&fakePutter{err: errors.New("access denied")}, "b", "", nil)
	if err := a.Archive(context.Background(), types.Channel{Name: "x"}, testArticle()); err == nil {
		t.Fatalf("expected put error")
	}
}
