// internal/harvest/profile.go
package harvest

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valpere/FeedHarvester/internal/browser"
)

// Tuning controls pacing and termination of the reveal loop
type Tuning struct {
	MaxCycles         int           `yaml:"max_cycles" json:"max_cycles"`
	StagnationCeiling int           `yaml:"stagnation_ceiling" json:"stagnation_ceiling"`
	LoadPause         time.Duration `yaml:"load_pause" json:"load_pause"`
	RevealPause       time.Duration `yaml:"reveal_pause" json:"reveal_pause"`
	StagnantPause     time.Duration `yaml:"stagnant_pause" json:"stagnant_pause"`
	RootWait          time.Duration `yaml:"root_wait" json:"root_wait"`
}

// DefaultTuning returns the pacing each surface is known to tolerate
func DefaultTuning(kind Kind) Tuning {
	switch kind {
	case KindVideo:
		return Tuning{
			MaxCycles:         100,
			StagnationCeiling: 15,
			LoadPause:         8 * time.Second,
			RevealPause:       4 * time.Second,
			StagnantPause:     3 * time.Second,
			RootWait:          10 * time.Second,
		}
	case KindComment:
		return Tuning{
			MaxCycles:         100,
			StagnationCeiling: 15,
			LoadPause:         5 * time.Second,
			RevealPause:       3 * time.Second,
			StagnantPause:     2 * time.Second,
			RootWait:          10 * time.Second,
		}
	default:
		return Tuning{
			MaxCycles:         100,
			StagnationCeiling: 20,
			LoadPause:         5 * time.Second,
			RevealPause:       3 * time.Second,
			StagnantPause:     2 * time.Second,
			RootWait:          10 * time.Second,
		}
	}
}

// Merge fills zero fields of t from def
func (t Tuning) Merge(def Tuning) Tuning {
	if t.MaxCycles <= 0 {
		t.MaxCycles = def.MaxCycles
	}
	if t.StagnationCeiling <= 0 {
		t.StagnationCeiling = def.StagnationCeiling
	}
	if t.LoadPause <= 0 {
		t.LoadPause = def.LoadPause
	}
	if t.RevealPause <= 0 {
		t.RevealPause = def.RevealPause
	}
	if t.StagnantPause <= 0 {
		t.StagnantPause = def.StagnantPause
	}
	if t.RootWait <= 0 {
		t.RootWait = def.RootWait
	}
	return t
}

// Profile describes how to find and read one record kind
type Profile struct {
	Kind Kind
	// RootSelectors are tried in order; the first one that matches
	// anything supplies the cycle's roots.
	RootSelectors []string
	Fields        []Field
	// Assemble turns extracted field values into a record
	Assemble func(values map[string]string) Record
}

// Build extracts every field from root and assembles a record. A panic
// anywhere in assembly is returned as an error.
func (p *Profile) Build(root browser.Node) (rec Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec, err = nil, fmt.Errorf("building %s record: %v", p.Kind, r)
		}
	}()

	values := make(map[string]string, len(p.Fields))
	for _, f := range p.Fields {
		values[f.Name] = f.Extract(root)
	}
	rec = p.Assemble(values)
	if rec == nil {
		return nil, fmt.Errorf("building %s record: no record assembled", p.Kind)
	}
	return rec, nil
}

// lastPathSegment turns "https://x.com/alice" into "alice"
func lastPathSegment(href string) string {
	href = strings.TrimRight(href, "/")
	if i := strings.LastIndex(href, "/"); i >= 0 {
		return href[i+1:]
	}
	return href
}

// absoluteURL resolves href against base
func absoluteURL(base string) func(string) string {
	b, _ := url.Parse(base)
	return func(href string) string {
		ref, err := url.Parse(href)
		if err != nil || b == nil {
			return href
		}
		return b.ResolveReference(ref).String()
	}
}

func isThumbnail(src string) bool {
	return strings.Contains(src, "ytimg.com") || strings.Contains(src, "ggpht.com")
}

func mentionsViews(text string) bool {
	return strings.Contains(strings.ToLower(text), "view")
}

var relativeTimeWords = []string{"ago", "day", "week", "month", "year", "hour", "minute"}

func mentionsRelativeTime(text string) bool {
	if mentionsViews(text) {
		return false
	}
	l := strings.ToLower(text)
	for _, w := range relativeTimeWords {
		if strings.Contains(l, w) {
			return true
		}
	}
	return false
}

// ranked applies build to each selector, preserving order
func ranked(selectors []string, build func(string) Strategy) []Strategy {
	out := make([]Strategy, 0, len(selectors))
	for _, sel := range selectors {
		out = append(out, build(sel))
	}
	return out
}

// PostProfile reads posts from the live search feed
func PostProfile() *Profile {
	return &Profile{
		Kind:          KindPost,
		RootSelectors: []string{PostRoot},
		Fields: []Field{
			NewField("text", "", Text(PostText), Text(PostLangText)),
			NewField("time", "", Attr(PostTime, "datetime")),
			NewField("username", "", AttrTransform(PostAuthorLink, "href", lastPathSegment)),
			NewField("likes", "0", AriaMetric(MetricLike), FirstText(LikeSpans, isDigits)),
			NewField("retweets", "0", AriaMetric(MetricRepost), FirstText(RetweetSpans, isCounter)),
			NewField("replies", "0", AriaMetric(MetricReply), FirstText(ReplySpans, isCounter)),
			NewField("views", "0", AriaMetric(MetricView), FirstText(AnalyticsSpans, isCounter)),
		},
		Assemble: func(v map[string]string) Record {
			return &Post{
				Platform:      PlatformTwitter,
				Text:          v["text"],
				Time:          v["time"],
				Username:      v["username"],
				Likes:         v["likes"],
				Retweets:      v["retweets"],
				Replies:       v["replies"],
				Views:         v["views"],
				LikesCount:    NormalizeCount(v["likes"]),
				RetweetsCount: NormalizeCount(v["retweets"]),
				RepliesCount:  NormalizeCount(v["replies"]),
				ViewsCount:    NormalizeCount(v["views"]),
			}
		},
	}
}

// VideoProfile reads entries of a video search listing
func VideoProfile() *Profile {
	resolve := absoluteURL(VideoBaseURL)
	link := func(sel string) Strategy { return AttrWhereText(sel, "href", resolve) }
	views := func(sel string) Strategy { return FirstText(sel, mentionsViews) }
	uploaded := func(sel string) Strategy { return FirstText(sel, mentionsRelativeTime) }

	return &Profile{
		Kind:          KindVideo,
		RootSelectors: VideoRoots,
		Fields: []Field{
			NewField("title", "", ranked(videoTitleSelectors, Text)...),
			NewField("video_url", "", ranked(videoTitleSelectors, link)...),
			NewField("channel", "", ranked(videoChannelSelectors, Text)...),
			NewField("views", "0", ranked(videoMetadataSelectors, views)...),
			NewField("upload_time", "", ranked(videoMetadataSelectors, uploaded)...),
			NewField("duration", "", ranked(videoDurationSelectors, Text)...),
			NewField("thumbnail", "", FirstAttr(VideoThumbnailImage, "src", isThumbnail)),
		},
		Assemble: func(v map[string]string) Record {
			return &Video{
				Platform:   PlatformYouTube,
				Title:      v["title"],
				Channel:    v["channel"],
				Views:      v["views"],
				ViewsCount: NormalizeCount(v["views"]),
				UploadTime: v["upload_time"],
				Duration:   v["duration"],
				Thumbnail:  v["thumbnail"],
				VideoURL:   v["video_url"],
			}
		},
	}
}

// CommentProfile reads top-level comments of the video at videoURL
func CommentProfile(videoURL string) *Profile {
	return &Profile{
		Kind:          KindComment,
		RootSelectors: []string{CommentRoot},
		Fields: []Field{
			NewField("text", "", Text(CommentText)),
			NewField("author", "", Text(CommentAuthor)),
			NewField("likes", "0", Text(CommentVotes)),
			NewField("time", "", Text(CommentPublished)),
		},
		Assemble: func(v map[string]string) Record {
			return &Comment{
				Platform:   PlatformYouTubeComment,
				Text:       v["text"],
				Author:     v["author"],
				Likes:      v["likes"],
				LikesCount: NormalizeCount(v["likes"]),
				Time:       v["time"],
				VideoURL:   videoURL,
			}
		},
	}
}
