package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mmcdole/gofeed"
	"github.com/newschat/rag-backend/internal/entity"
	"go.uber.org/zap"
)

// Fetcher pulls articles from RSS feeds and writes them to the documents
// file consumed by ingestion. It is the document-acquisition collaborator;
// the retrieval core only ever sees its output file.
type Fetcher struct {
	parser *gofeed.Parser
	logger *zap.Logger
}

func NewFetcher(logger *zap.Logger) *Fetcher {
	return &Fetcher{parser: gofeed.NewParser(), logger: logger}
}

// Fetch collects up to maxArticles items across the given feeds. A feed
// that fails to parse is skipped with a warning; the rest still count.
func (f *Fetcher) Fetch(ctx context.Context, feedURLs []string, maxArticles int) []entity.Document {
	var articles []entity.Document

	for _, feedURL := range feedURLs {
		if len(articles) >= maxArticles {
			break
		}

		parsed, err := f.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			f.logger.Warn("failed to fetch feed", zap.String("feed_url", feedURL), zap.Error(err))
			continue
		}

		for _, item := range parsed.Items {
			if len(articles) >= maxArticles {
				break
			}
			articles = append(articles, itemToDocument(item))
		}
	}

	f.logger.Info("feeds fetched", zap.Int("articles", len(articles)), zap.Int("feeds", len(feedURLs)))
	return articles
}

func itemToDocument(item *gofeed.Item) entity.Document {
	id := item.GUID
	if id == "" {
		id = item.Link
	}
	title := item.Title
	if title == "" {
		title = "(no title)"
	}
	content := item.Description
	if content == "" {
		content = item.Content
	}
	publishedAt := ""
	if item.PublishedParsed != nil {
		publishedAt = item.PublishedParsed.UTC().Format("2006-01-02T15:04:05Z07:00")
	}

	return entity.Document{
		ID:          id,
		Title:       title,
		Content:     content,
		URL:         item.Link,
		PublishedAt: publishedAt,
	}
}

// WriteDocuments saves the article list in the documents-file format,
// atomically.
func WriteDocuments(path string, docs []entity.Document) error {
	data, err := json.MarshalIndent(entity.DocumentFile{Articles: docs}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal articles: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "articles-*.json")
	if err != nil {
		return fmt.Errorf("create articles temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write articles: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close articles: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace articles: %w", err)
	}
	return nil
}

// LoadDocuments reads the documents file. The caller decides whether a
// missing file is fatal; os.IsNotExist distinguishes that case.
func LoadDocuments(path string) ([]entity.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file entity.DocumentFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse documents file %s: %w", path, err)
	}
	return file.Articles, nil
}
