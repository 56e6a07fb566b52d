// internal/browser/dom_test.go
package browser

import "testing"

const feedHTML = `<html><body>
<article data-testid="tweet">
  <div data-testid="tweetText">  first post </div>
  <div data-testid="User-Name"><a href="/alice">Alice</a></div>
</article>
<article data-testid="tweet">
  <div data-testid="tweetText">second post</div>
</article>
</body></html>`

func TestDocument_QueryAll(t *testing.T) {
	doc, err := ParseDocument(feedHTML)
	if err != nil {
		t.Fatalf("ParseDocument failed: %v", err)
	}

	roots := doc.QueryAll(`article[data-testid="tweet"]`)
	if len(roots) != 2 {
		t.Fatalf("Expected 2 roots, got %d", len(roots))
	}

	text, ok := roots[0].Find(`[data-testid="tweetText"]`)
	if !ok {
		t.Fatal("Expected tweet text node")
	}
	if text.Text() != "first post" {
		t.Errorf("Expected trimmed text, got %q", text.Text())
	}

	link, ok := roots[0].Find(`[data-testid="User-Name"] a`)
	if !ok {
		t.Fatal("Expected author link")
	}
	if href, _ := link.Attr("href"); href != "/alice" {
		t.Errorf("Expected href /alice, got %q", href)
	}

	// Queries are scoped to the root they are issued from.
	if _, ok := roots[1].Find(`[data-testid="User-Name"] a`); ok {
		t.Error("Expected second root to have no author link")
	}
	if n := len(roots[1].FindAll("div")); n != 1 {
		t.Errorf("Expected 1 div in second root, got %d", n)
	}
}

func TestDocument_NoMatches(t *testing.T) {
	doc, err := ParseDocument("<html><body></body></html>")
	if err != nil {
		t.Fatalf("ParseDocument failed: %v", err)
	}
	if roots := doc.QueryAll("article"); len(roots) != 0 {
		t.Errorf("Expected no roots, got %d", len(roots))
	}
}
