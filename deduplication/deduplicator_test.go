package deduplication

import (
	"context"
	"errors"
	"sync"
	"testing"

	"newsbot/storage"
	"newsbot/types"
)

type fakeArticleStore struct {
	mu        sync.Mutex
	articles  map[string]int64
	nextID    int64
	existsErr error
	// hidden makes ArticleExists miss rows so the insert path is exercised
	hidden bool
}

func newFakeArticleStore() *fakeArticleStore {
	return &fakeArticleStore{articles: make(map[string]int64)}
}

func (f *fakeArticleStore) ArticleExists(ctx context.Context, hash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existsErr != nil {
		return false, f.existsErr
	}
	if f.hidden {
		return false, nil
	}
	_, ok := f.articles[hash]
	return ok, nil
}

func (f *fakeArticleStore) InsertArticle(ctx context.Context, article *types.Article) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.articles[article.Hash]; ok {
		return 0, storage.ErrConflict
	}
	f.nextID++
	f.articles[article.Hash] = f.nextID
	return f.nextID, nil
}

func newTestArticle(link string) *types.Article {
	_, hash := Identity(link)
	return &types.Article{Hash: hash, Link: link, Title: "title"}
}

func TestProcessArticleInsertsNewArticle(t *testing.T) {
	store := newFakeArticleStore()
	d, err := NewDeduplicator(store, nil)
	if err != nil {
		t.Fatalf("NewDeduplicator: %v", err)
	}

	article := newTestArticle("https://example.com/a")
	res, err := d.ProcessArticle(context.Background(), article)
	if err != nil {
		t.Fatalf("ProcessArticle: %v", err)
	}
	if res.IsDuplicate {
		t.Fatalf("new article reported as duplicate")
	}
	if res.ArticleID == 0 || article.ID != res.ArticleID {
		t.Fatalf("article id not propagated: result=%d article=%d", res.ArticleID, article.ID)
	}

	again, err := d.ProcessArticle(context.Background(), newTestArticle("http://www.example.com/a/"))
	if err != nil {
		t.Fatalf("ProcessArticle (second): %v", err)
	}
	if !again.IsDuplicate {
		t.Fatalf("equivalent link should be a duplicate")
	}
}

func TestAddArticleConflictIsDuplicate(t *testing.T) {
	store := newFakeArticleStore()
	store.hidden = true
	d, _ := NewDeduplicator(store, nil)

	if _, err := d.AddArticle(context.Background(), newTestArticle("https://example.com/x")); err != nil {
		t.Fatalf("first AddArticle: %v", err)
	}
	res, err := d.AddArticle(context.Background(), newTestArticle("https://example.com/x"))
	if err != nil {
		t.Fatalf("conflict should not surface as error: %v", err)
	}
	if !res.IsDuplicate {
		t.Fatalf("conflicting insert should be a duplicate")
	}
}

func TestProcessArticleIgnoresLookupFailure(t *testing.T) {
	store := newFakeArticleStore()
	store.existsErr = errors.New("boom")
	d, _ := NewDeduplicator(store, nil)

	res, err := d.ProcessArticle(context.Background(), newTestArticle("https://example.com/y"))
	if err != nil {
		t.Fatalf("ProcessArticle: %v", err)
	}
	if res.IsDuplicate || res.ArticleID == 0 {
		t.Fatalf("insert should proceed when the advisory lookup fails: %+v", res)
	}
}

func TestConcurrentAddArticleSingleWinner(t *testing.T) {
	store := newFakeArticleStore()
	store.hidden = true
	d, _ := NewDeduplicator(store, nil)

	const workers = 16
	var wg sync.WaitGroup
	results := make([]*DeduplicationResult, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := d.AddArticle(context.Background(), newTestArticle("https://example.com/race"))
			if err != nil {
				t.Errorf("AddArticle: %v", err)
				return
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, r := range results {
		if r != nil && !r.IsDuplicate {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one accepted insert, got %d", winners)
	}
}
