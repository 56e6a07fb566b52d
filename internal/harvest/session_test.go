// internal/harvest/session_test.go
package harvest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/valpere/FeedHarvester/internal/browser"
)

// scriptedSession serves pages[n] after n reveals, like a feed that
// appends content as it is scrolled.
type scriptedSession struct {
	mu sync.Mutex

	pages   []string
	heights []int64
	forms   map[string]bool

	failSubmit   error
	failNavigate error
	failScripts  map[string]error
	panicOnNav   bool

	reveals   int
	closes    int
	navigated []string
	submitted map[string]string
	scripts   []string
}

func newScriptedSession(pages []string, heights []int64) *scriptedSession {
	return &scriptedSession{
		pages:     pages,
		heights:   heights,
		forms:     map[string]bool{UsernameInput: true, PasswordInput: true},
		submitted: make(map[string]string),
	}
}

func (s *scriptedSession) page() string {
	if len(s.pages) == 0 {
		return "<html><body></body></html>"
	}
	i := s.reveals
	if i >= len(s.pages) {
		i = len(s.pages) - 1
	}
	return s.pages[i]
}

func (s *scriptedSession) height() int64 {
	if len(s.heights) == 0 {
		return 0
	}
	i := s.reveals
	if i >= len(s.heights) {
		i = len(s.heights) - 1
	}
	return s.heights[i]
}

func (s *scriptedSession) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panicOnNav {
		panic("renderer crashed")
	}
	s.navigated = append(s.navigated, url)
	return s.failNavigate
}

func (s *scriptedSession) QueryAll(ctx context.Context, selector string) ([]browser.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closes > 0 {
		return nil, browser.ErrSessionClosed
	}
	doc, err := browser.ParseDocument(s.page())
	if err != nil {
		return nil, err
	}
	return doc.QueryAll(selector), nil
}

func (s *scriptedSession) WaitForElement(ctx context.Context, selector string, timeout time.Duration) error {
	s.mu.Lock()
	form := s.forms[selector]
	s.mu.Unlock()
	if form {
		return nil
	}
	nodes, err := s.QueryAll(ctx, selector)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return fmt.Errorf("timeout waiting for %s", selector)
	}
	return nil
}

func (s *scriptedSession) ExecuteScript(ctx context.Context, script string) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closes > 0 {
		return nil, browser.ErrSessionClosed
	}
	s.scripts = append(s.scripts, script)
	if err := s.failScripts[script]; err != nil {
		return nil, err
	}
	switch script {
	case revealScript:
		s.reveals++
		return nil, nil
	case extentScript:
		return float64(s.height()), nil
	}
	return nil, nil
}

func (s *scriptedSession) SubmitInput(ctx context.Context, selector, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSubmit != nil {
		return s.failSubmit
	}
	s.submitted[selector] = value
	return nil
}

func (s *scriptedSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *scriptedSession) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// countingOpener hands out sessions from a factory and counts calls
type countingOpener struct {
	mu      sync.Mutex
	calls   int
	factory func() *scriptedSession
	opened  []*scriptedSession
}

func (o *countingOpener) NewSession(ctx context.Context) (browser.Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	s := o.factory()
	o.opened = append(o.opened, s)
	return s, nil
}

func noPause(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

func postHTML(from, to int) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := from; i <= to; i++ {
		fmt.Fprintf(&b, `<article data-testid="tweet">
  <div data-testid="User-Name"><a href="https://x.com/user%d">User %d</a></div>
  <time datetime="2024-01-0%dT10:00:00.000Z">Jan %d</time>
  <div data-testid="tweetText">post %d</div>
  <div role="group">
    <div aria-label="%d Replies. Reply"></div>
    <div aria-label="%d reposts. Repost"></div>
    <div aria-label="%d Likes. Like"></div>
  </div>
</article>`, i, i, i%9+1, i, i, i, i*2, i*10)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func videoHTML(titles ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i, title := range titles {
		fmt.Fprintf(&b, `<ytd-video-renderer>
  <img src="https://i.ytimg.com/vi/id%d/hq720.jpg">
  <span class="ytd-thumbnail-overlay-time-status-renderer">%d:0%d</span>
  <h3><a id="video-title" href="/watch?v=id%d">%s</a></h3>
  <div id="channel-name"><a href="/@chan%d">Channel %d</a></div>
  <div id="metadata-line"><span>%d.2K views</span><span>%d days ago</span></div>
</ytd-video-renderer>`, i, i+1, i, i, title, i, i, i+1, i+1)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func commentHTML(n int) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, `<ytd-comment-thread-renderer>
  <a id="author-text"> @viewer%d </a>
  <span class="published-time-text"><a href="#">%d hours ago</a></span>
  <yt-formatted-string id="content-text">comment %d</yt-formatted-string>
  <span id="vote-count-middle">%d</span>
</ytd-comment-thread-renderer>`, i, i, i, i*3)
	}
	b.WriteString("</body></html>")
	return b.String()
}
