package feed

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/pders01/roster/internal/storage"
)

const unknownSource = "Unknown Source"

// Normalize attributes the dated items of doc to member. Items without a
// publish date are dropped.
func Normalize(member storage.Member, doc *Document, excerptLength int) []storage.Article {
	site := doc.SiteTitle
	if site == "" {
		site = unknownSource
	}

	articles := make([]storage.Article, 0, len(doc.Items))
	for _, item := range doc.Items {
		if item.Published.IsZero() {
			continue
		}

		articles = append(articles, storage.Article{
			Title:              item.Title,
			Link:               item.Link,
			PubDate:            item.Published,
			Excerpt:            excerpt(item.Summary, excerptLength),
			SiteName:           site,
			Author:             member.Name,
			AuthorAvatar:       member.Avatar,
			Tags:               append([]string(nil), member.Tags...),
			IsDuringEmployment: member.Tenure.Contains(item.Published),
		})
	}
	return articles
}

// excerpt returns the visible text of an HTML fragment with whitespace
// collapsed, cut to at most n runes.
func excerpt(fragment string, n int) string {
	return truncate(extractText(fragment), n)
}

func extractText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.Join(strings.Fields(fragment), " ")
	}

	var sb strings.Builder
	skip := 0
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(sb.String()), " ")
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style", "noscript":
				skip++
			case "br", "p", "div", "li":
				sb.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style", "noscript":
				if skip > 0 {
					skip--
				}
			case "p", "div", "li":
				sb.WriteByte(' ')
			}
		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Text())
			}
		}
	}
}

func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return strings.TrimRight(string(runes[:n-3]), " ") + "..."
}
