// internal/harvest/selectors.go
package harvest

// Content surface DOM selectors. The feeds change their markup often;
// update these when harvests start coming back empty.

// Posts
const (
	PostRoot           = `article[data-testid="tweet"]`
	PostText           = `[data-testid="tweetText"]`
	PostLangText       = `div[lang]`
	PostTime           = `time`
	PostAuthorLink     = `[data-testid="User-Name"] a`
	PostStatusLink     = `a[href*="/status/"]`
	ActionGroupButtons = `div[role="group"] > div, div[role="group"] button[aria-label]`
	LikeSpans          = `button[data-testid="like"] span, div[data-testid="like"] span`
	RetweetSpans       = `button[data-testid="retweet"] span, div[data-testid="retweet"] span`
	ReplySpans         = `button[data-testid="reply"] span, div[data-testid="reply"] span`
	AnalyticsSpans     = `a[href$="/analytics"] span`
)

// Sign-in form
const (
	LoginURL      = "https://twitter.com/login"
	UsernameInput = `input[autocomplete="username"]`
	PasswordInput = `input[name="password"]`
)

// Videos
var VideoRoots = []string{
	`ytd-video-renderer`,
	`ytd-compact-video-renderer`,
	`div.ytd-video-renderer`,
	`[class*="video-renderer"]`,
}

var (
	videoTitleSelectors = []string{
		`a#video-title`,
		`h3 a`,
		`h3.ytd-video-renderer a`,
		`.ytd-video-renderer h3 a`,
		`a[href*="/watch?v="]`,
	}
	videoChannelSelectors = []string{
		`a.yt-simple-endpoint.style-scope.yt-formatted-string`,
		`.ytd-channel-name a`,
		`#channel-name a`,
		`.ytd-video-owner-renderer a`,
		`a[href*="/channel/"]`,
		`a[href*="/@"]`,
	}
	videoMetadataSelectors = []string{
		`span.style-scope.ytd-video-meta-block`,
		`#metadata-line span`,
		`.ytd-video-meta-block span`,
	}
	videoDurationSelectors = []string{
		`span.ytd-thumbnail-overlay-time-status-renderer`,
		`.badge-shape-wiz__text`,
		`span.style-scope.ytd-thumbnail-overlay-time-status-renderer`,
	}
)

const VideoThumbnailImage = `img`

// Comments
const (
	CommentRoot      = `ytd-comment-thread-renderer`
	CommentText      = `#content-text`
	CommentAuthor    = `#author-text`
	CommentVotes     = `#vote-count-middle`
	CommentPublished = `.published-time-text a`
)

// Surfaces
const (
	PostSearchURL  = "https://x.com/search?q=%s&src=typed_query&f=live"
	VideoSearchURL = "https://www.youtube.com/results?search_query=%s"
	VideoBaseURL   = "https://www.youtube.com"
)
