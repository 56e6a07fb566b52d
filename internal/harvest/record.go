// internal/harvest/record.go
package harvest

import (
	"fmt"
	"unicode/utf8"
)

// Kind identifies a record profile
type Kind string

// Record kinds
const (
	KindPost    Kind = "post"
	KindVideo   Kind = "video"
	KindComment Kind = "comment"
)

// ParseKind accepts the kind names used on the CLI and in config
func ParseKind(s string) (Kind, error) {
	switch s {
	case "post", "posts", "tweet", "tweets":
		return KindPost, nil
	case "video", "videos":
		return KindVideo, nil
	case "comment", "comments":
		return KindComment, nil
	}
	return "", fmt.Errorf("unknown record kind: %q", s)
}

// Platform tags carried on every record
const (
	PlatformTwitter        = "twitter"
	PlatformYouTube        = "youtube"
	PlatformYouTubeComment = "youtube_comment"
)

// Identity is the composite key used for deduplication. Posts and
// comments are keyed on (text, author), videos on title alone. Two
// distinct posts with identical text by the same author collapse into
// one; that loss is accepted.
type Identity struct {
	Kind    Kind
	Primary string
	Author  string
}

// Record is one harvested item
type Record interface {
	Kind() Kind
	Identity() Identity
	// Acceptable reports whether the primary content is good enough
	// to keep.
	Acceptable() bool
	// Columns and Values give a flat, ordered view for tabular sinks.
	Columns() []string
	Values() []interface{}
}

// Post is a short social post from the gated feed
type Post struct {
	Platform      string `json:"platform" yaml:"platform"`
	Text          string `json:"text" yaml:"text"`
	Time          string `json:"time" yaml:"time"`
	Username      string `json:"username" yaml:"username"`
	Likes         string `json:"likes" yaml:"likes"`
	Retweets      string `json:"retweets" yaml:"retweets"`
	Replies       string `json:"replies" yaml:"replies"`
	Views         string `json:"views" yaml:"views"`
	LikesCount    *int64 `json:"likes_count" yaml:"likes_count"`
	RetweetsCount *int64 `json:"retweets_count" yaml:"retweets_count"`
	RepliesCount  *int64 `json:"replies_count" yaml:"replies_count"`
	ViewsCount    *int64 `json:"views_count" yaml:"views_count"`
}

func (p *Post) Kind() Kind { return KindPost }

func (p *Post) Identity() Identity {
	return Identity{Kind: KindPost, Primary: p.Text, Author: p.Username}
}

func (p *Post) Acceptable() bool { return p.Text != "" }

func (p *Post) Columns() []string {
	return []string{
		"platform", "text", "time", "username",
		"likes", "retweets", "replies", "views",
		"likes_count", "retweets_count", "replies_count", "views_count",
	}
}

func (p *Post) Values() []interface{} {
	return []interface{}{
		p.Platform, p.Text, p.Time, p.Username,
		p.Likes, p.Retweets, p.Replies, p.Views,
		p.LikesCount, p.RetweetsCount, p.RepliesCount, p.ViewsCount,
	}
}

// Video is one entry of a video search listing
type Video struct {
	Platform   string `json:"platform" yaml:"platform"`
	Title      string `json:"title" yaml:"title"`
	Channel    string `json:"channel" yaml:"channel"`
	Views      string `json:"views" yaml:"views"`
	ViewsCount *int64 `json:"views_count" yaml:"views_count"`
	UploadTime string `json:"upload_time" yaml:"upload_time"`
	Duration   string `json:"duration" yaml:"duration"`
	Thumbnail  string `json:"thumbnail" yaml:"thumbnail"`
	VideoURL   string `json:"video_url" yaml:"video_url"`
	// Description is empty in search listings
	Description string `json:"description" yaml:"description"`
}

func (v *Video) Kind() Kind { return KindVideo }

func (v *Video) Identity() Identity {
	return Identity{Kind: KindVideo, Primary: v.Title}
}

// Acceptable requires a title longer than three characters
func (v *Video) Acceptable() bool { return utf8.RuneCountInString(v.Title) > 3 }

func (v *Video) Columns() []string {
	return []string{
		"platform", "title", "channel", "views", "views_count",
		"upload_time", "duration", "thumbnail", "video_url", "description",
	}
}

func (v *Video) Values() []interface{} {
	return []interface{}{
		v.Platform, v.Title, v.Channel, v.Views, v.ViewsCount,
		v.UploadTime, v.Duration, v.Thumbnail, v.VideoURL, v.Description,
	}
}

// Comment is one top-level comment under a video
type Comment struct {
	Platform   string `json:"platform" yaml:"platform"`
	Text       string `json:"text" yaml:"text"`
	Author     string `json:"author" yaml:"author"`
	Likes      string `json:"likes" yaml:"likes"`
	LikesCount *int64 `json:"likes_count" yaml:"likes_count"`
	Time       string `json:"time" yaml:"time"`
	VideoURL   string `json:"video_url" yaml:"video_url"`
}

func (c *Comment) Kind() Kind { return KindComment }

func (c *Comment) Identity() Identity {
	return Identity{Kind: KindComment, Primary: c.Text, Author: c.Author}
}

func (c *Comment) Acceptable() bool { return c.Text != "" }

func (c *Comment) Columns() []string {
	return []string{"platform", "text", "author", "likes", "likes_count", "time", "video_url"}
}

func (c *Comment) Values() []interface{} {
	return []interface{}{c.Platform, c.Text, c.Author, c.Likes, c.LikesCount, c.Time, c.VideoURL}
}

// Tabulate flattens records of one kind into columns and rows. Mixed
// kinds take their columns from the first record.
func Tabulate(records []Record) ([]string, [][]interface{}) {
	if len(records) == 0 {
		return nil, nil
	}
	columns := records[0].Columns()
	rows := make([][]interface{}, 0, len(records))
	for _, r := range records {
		rows = append(rows, r.Values())
	}
	return columns, rows
}
