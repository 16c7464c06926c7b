package feed

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/pders01/roster/internal/storage"
)

// Document is a parsed feed reduced to what the timeline needs.
type Document struct {
	SiteTitle string
	Items     []storage.FeedItem
}

type Parser struct {
	parser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		parser: gofeed.NewParser(),
	}
}

// Parse decodes an RSS, Atom or JSON feed. Items keep document order.
func (p *Parser) Parse(data []byte) (*Document, error) {
	feed, err := p.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}

	doc := &Document{
		SiteTitle: strings.TrimSpace(feed.Title),
		Items:     make([]storage.FeedItem, 0, len(feed.Items)),
	}

	for _, item := range feed.Items {
		fi := storage.FeedItem{
			Title:   strings.TrimSpace(item.Title),
			Link:    item.Link,
			Summary: getSummary(item),
		}

		// Atom entries often carry only <updated>.
		if item.PublishedParsed != nil {
			fi.Published = item.PublishedParsed.UTC()
		} else if item.UpdatedParsed != nil {
			fi.Published = item.UpdatedParsed.UTC()
		}

		doc.Items = append(doc.Items, fi)
	}

	return doc, nil
}

func getSummary(item *gofeed.Item) string {
	if item.Description != "" {
		return item.Description
	}
	return item.Content
}
