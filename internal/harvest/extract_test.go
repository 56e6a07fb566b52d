// internal/harvest/extract_test.go
package harvest

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/valpere/FeedHarvester/internal/browser"
)

func firstRoot(t *testing.T, html, selector string) browser.Node {
	t.Helper()
	doc, err := browser.ParseDocument(html)
	if err != nil {
		t.Fatalf("ParseDocument failed: %v", err)
	}
	roots := doc.QueryAll(selector)
	if len(roots) == 0 {
		t.Fatalf("No roots for %s", selector)
	}
	return roots[0]
}

func TestNormalizeCount(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
		null bool
	}{
		{raw: "1,234", want: 1234},
		{raw: "2.5K", want: 2500},
		{raw: "3M", want: 3000000},
		{raw: "1.2m views", want: 1200000},
		{raw: "1,234 views", want: 1234},
		{raw: "Like 12", want: 12},
		{raw: "5 months ago", want: 5},
		{raw: "0", want: 0},
		{raw: "2.5Kviews", want: 2500},
		{raw: "1.2Mviews", want: 1200000},
		{raw: "7 K likes", want: 7000},
		{raw: "12 mins", want: 12},
		{raw: "1.25K", want: 1250},
		{raw: "2.5", want: 3},
		{raw: "2.4", want: 2},
		{raw: "no numbers here", null: true},
		{raw: "", null: true},
	}

	for _, tt := range tests {
		got := NormalizeCount(tt.raw)
		if tt.null {
			if got != nil {
				t.Errorf("NormalizeCount(%q) = %d, want nil", tt.raw, *got)
			}
			continue
		}
		if got == nil {
			t.Errorf("NormalizeCount(%q) = nil, want %d", tt.raw, tt.want)
			continue
		}
		if *got != tt.want {
			t.Errorf("NormalizeCount(%q) = %d, want %d", tt.raw, *got, tt.want)
		}
	}
}

func TestField_RankedStrategies(t *testing.T) {
	root := firstRoot(t, `<div class="r"><span class="b">second</span></div>`, "div.r")

	field := NewField("value", "fallback",
		Text("span.a"),
		Text("span.b"),
	)

	value, strategy := field.ExtractNamed(root)
	if value != "second" {
		t.Errorf("Expected second-ranked value, got %q", value)
	}
	if strategy != "text:span.b" {
		t.Errorf("Expected winning strategy text:span.b, got %q", strategy)
	}
}

func TestField_FallbackCompleteness(t *testing.T) {
	root := firstRoot(t, `<div class="r"></div>`, "div.r")

	for _, def := range []string{"", "0"} {
		field := NewField("count", def, Text("span.missing"), Attr("a", "href"))

		n := len(field.Strategies)
		if n != 3 {
			t.Fatalf("Expected fallback appended, got %d strategies", n)
		}
		if last := field.Strategies[n-1]; last.Name != "default" {
			t.Errorf("Expected last strategy to be the default, got %q", last.Name)
		}
		if got := field.Extract(root); got != def {
			t.Errorf("Expected default %q, got %q", def, got)
		}
	}
}

func TestField_PanickingStrategyIsNotFound(t *testing.T) {
	root := firstRoot(t, `<div class="r"><b>ok</b></div>`, "div.r")

	field := NewField("value", "",
		Func("boom", func(browser.Node) (string, bool) { panic("selector engine exploded") }),
		Func("nil-node", func(n browser.Node) (string, bool) {
			var missing browser.Node
			return missing.Text(), true
		}),
		Text("b"),
	)

	if got := field.Extract(root); got != "ok" {
		t.Errorf("Expected extraction to survive panics, got %q", got)
	}
}

func TestField_BlankValuesFallThrough(t *testing.T) {
	root := firstRoot(t, `<div class="r"><i>   </i><b>ok</b></div>`, "div.r")

	field := NewField("value", "", Text("i"), Text("b"))
	if got := field.Extract(root); got != "ok" {
		t.Errorf("Expected whitespace-only value to be skipped, got %q", got)
	}
}

func TestAriaMetric(t *testing.T) {
	root := firstRoot(t, `<article>
  <div role="group">
    <div aria-label="1,204 Replies. Reply"></div>
    <div aria-label="0 reposts. Repost"></div>
    <div aria-label="3,400 Likes. Like"></div>
    <div aria-label="Share post"></div>
    <div aria-label="98765 views. View post analytics"></div>
  </div>
  <button data-testid="retweet"><span>1.5K</span></button>
</article>`, "article")

	tests := []struct {
		metric string
		want   string
		found  bool
	}{
		{MetricReply, "1204", true},
		{MetricLike, "3400", true},
		{MetricView, "98765", true},
		{MetricRepost, "", false},
	}
	for _, tt := range tests {
		got, ok := AriaMetric(tt.metric).Find(root)
		if ok != tt.found || got != tt.want {
			t.Errorf("AriaMetric(%s) = %q, %v; want %q, %v", tt.metric, got, ok, tt.want, tt.found)
		}
	}

	// A zero aria reading defers to the span strategy.
	field := NewField("retweets", "0", AriaMetric(MetricRepost), FirstText(RetweetSpans, isCounter))
	if got := field.Extract(root); got != "1.5K" {
		t.Errorf("Expected span fallback 1.5K, got %q", got)
	}
}

func TestPostProfile_Build(t *testing.T) {
	root := firstRoot(t, postHTML(3, 3), PostRoot)

	rec, err := PostProfile().Build(root)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	post, ok := rec.(*Post)
	if !ok {
		t.Fatalf("Expected *Post, got %T", rec)
	}

	want := []string{"twitter", "post 3", "user3", "30", "6", "3", "0"}
	got := []string{post.Platform, post.Text, post.Username, post.Likes, post.Retweets, post.Replies, post.Views}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Post fields mismatch (-want +got):\n%s", diff)
	}
	if post.Time != "2024-01-04T10:00:00.000Z" {
		t.Errorf("Expected datetime attribute, got %q", post.Time)
	}
	if post.LikesCount == nil || *post.LikesCount != 30 {
		t.Errorf("Expected normalized likes 30, got %v", post.LikesCount)
	}
	if post.ViewsCount == nil || *post.ViewsCount != 0 {
		t.Errorf("Expected normalized default views 0, got %v", post.ViewsCount)
	}
	if rec.Identity() != (Identity{Kind: KindPost, Primary: "post 3", Author: "user3"}) {
		t.Errorf("Unexpected identity %+v", rec.Identity())
	}
}

func TestVideoProfile_Build(t *testing.T) {
	root := firstRoot(t, videoHTML("Go concurrency patterns"), VideoRoots[0])

	rec, err := VideoProfile().Build(root)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	video := rec.(*Video)

	want := &Video{
		Platform:   PlatformYouTube,
		Title:      "Go concurrency patterns",
		Channel:    "Channel 0",
		Views:      "1.2K views",
		ViewsCount: NormalizeCount("1200"),
		UploadTime: "1 days ago",
		Duration:   "1:00",
		Thumbnail:  "https://i.ytimg.com/vi/id0/hq720.jpg",
		VideoURL:   "https://www.youtube.com/watch?v=id0",
	}
	if diff := cmp.Diff(want, video); diff != "" {
		t.Errorf("Video mismatch (-want +got):\n%s", diff)
	}
}

func TestVideo_Acceptable(t *testing.T) {
	for title, want := range map[string]bool{"": false, "abc": false, "abcd": true, "日本語だ": true} {
		if got := (&Video{Title: title}).Acceptable(); got != want {
			t.Errorf("Acceptable(%q) = %v, want %v", title, got, want)
		}
	}
}

func TestCommentProfile_Build(t *testing.T) {
	root := firstRoot(t, commentHTML(1), CommentRoot)

	rec, err := CommentProfile("https://www.youtube.com/watch?v=abc").Build(root)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	want := &Comment{
		Platform:   PlatformYouTubeComment,
		Text:       "comment 1",
		Author:     "@viewer1",
		Likes:      "3",
		LikesCount: NormalizeCount("3"),
		Time:       "1 hours ago",
		VideoURL:   "https://www.youtube.com/watch?v=abc",
	}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("Comment mismatch (-want +got):\n%s", diff)
	}
}

func TestProfile_BuildRecoversAssemblyPanic(t *testing.T) {
	root := firstRoot(t, `<div class="r"></div>`, "div.r")
	p := &Profile{
		Kind:     KindPost,
		Fields:   []Field{NewField("text", "")},
		Assemble: func(map[string]string) Record { panic("bad record") },
	}

	if _, err := p.Build(root); err == nil {
		t.Error("Expected assembly panic to surface as an error")
	}
}

func TestTabulate(t *testing.T) {
	records := []Record{
		&Comment{Platform: PlatformYouTubeComment, Text: "a", Author: "x"},
		&Comment{Platform: PlatformYouTubeComment, Text: "b", Author: "y"},
	}
	columns, rows := Tabulate(records)
	if len(columns) != 7 || columns[1] != "text" {
		t.Errorf("Unexpected columns %v", columns)
	}
	if len(rows) != 2 || rows[1][1] != "b" {
		t.Errorf("Unexpected rows %v", rows)
	}
	if c, r := Tabulate(nil); c != nil || r != nil {
		t.Error("Expected nil table for no records")
	}
}
