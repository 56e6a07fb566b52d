// pkg/types/types.go
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Endpoint is a job submission route
type Endpoint string

const (
	EndpointFetchTweets   Endpoint = "/fetch-tweets"
	EndpointFetchVideos   Endpoint = "/fetch-youtube-videos"
	EndpointFetchComments Endpoint = "/fetch-youtube-comments"
	EndpointFetchAll      Endpoint = "/fetch-all"
	EndpointHealth        Endpoint = "/health"
)

// ValidEndpoints returns the job submission routes
func ValidEndpoints() []Endpoint {
	return []Endpoint{
		EndpointFetchTweets, EndpointFetchVideos,
		EndpointFetchComments, EndpointFetchAll,
	}
}

// IsValid reports whether e is a job submission route
func (e Endpoint) IsValid() bool {
	for _, valid := range ValidEndpoints() {
		if e == valid {
			return true
		}
	}
	return false
}

func (e Endpoint) String() string {
	return string(e)
}

// Platform tags the surface a record came from
type Platform string

const (
	PlatformTwitter        Platform = "twitter"
	PlatformYouTube        Platform = "youtube"
	PlatformYouTubeComment Platform = "youtube_comment"
)

// IsValid checks if the platform tag is known
func (p Platform) IsValid() bool {
	switch p {
	case PlatformTwitter, PlatformYouTube, PlatformYouTubeComment:
		return true
	}
	return false
}

// FetchPostsRequest is the body of /fetch-tweets
type FetchPostsRequest struct {
	SearchTerm string `json:"search_term,omitempty"`
	NumTweets  int    `json:"num_tweets,omitempty"`
}

// FetchVideosRequest is the body of /fetch-youtube-videos
type FetchVideosRequest struct {
	SearchTerm string `json:"search_term,omitempty"`
	NumVideos  int    `json:"num_videos,omitempty"`
}

// FetchCommentsRequest is the body of /fetch-youtube-comments
type FetchCommentsRequest struct {
	VideoURL    string `json:"video_url"`
	NumComments int    `json:"num_comments,omitempty"`
}

// FetchAllRequest is the body of /fetch-all
type FetchAllRequest struct {
	SearchTerm string `json:"search_term,omitempty"`
	NumTweets  int    `json:"num_tweets,omitempty"`
	NumVideos  int    `json:"num_videos,omitempty"`
}

// ErrorResponse is returned in place of records when a job fails
type ErrorResponse struct {
	Error string `json:"error"`
}

// Post is a harvested social post
type Post struct {
	Platform      Platform `json:"platform"`
	Text          string   `json:"text"`
	Time          string   `json:"time"`
	Username      string   `json:"username"`
	Likes         string   `json:"likes"`
	Retweets      string   `json:"retweets"`
	Replies       string   `json:"replies"`
	Views         string   `json:"views"`
	LikesCount    *int64   `json:"likes_count"`
	RetweetsCount *int64   `json:"retweets_count"`
	RepliesCount  *int64   `json:"replies_count"`
	ViewsCount    *int64   `json:"views_count"`
}

// Video is a harvested video listing entry
type Video struct {
	Platform    Platform `json:"platform"`
	Title       string   `json:"title"`
	Channel     string   `json:"channel"`
	Views       string   `json:"views"`
	ViewsCount  *int64   `json:"views_count"`
	UploadTime  string   `json:"upload_time"`
	Duration    string   `json:"duration"`
	Thumbnail   string   `json:"thumbnail"`
	VideoURL    string   `json:"video_url"`
	Description string   `json:"description"`
}

// Comment is a harvested video comment
type Comment struct {
	Platform   Platform `json:"platform"`
	Author     string   `json:"author"`
	Text       string   `json:"text"`
	Likes      string   `json:"likes"`
	LikesCount *int64   `json:"likes_count"`
	Time       string   `json:"time"`
	VideoURL   string   `json:"video_url"`
}

// JobError is a job failure reported by the server
type JobError struct {
	Message string
}

func (e *JobError) Error() string {
	return e.Message
}

// Outcome holds either the records of a job or its error. It decodes
// both response shapes.
type Outcome[T any] struct {
	Records []T
	Err     *JobError
}

// UnmarshalJSON accepts a record array or an error object
func (o *Outcome[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		o.Records = []T{}
		return nil
	}

	switch trimmed[0] {
	case '[':
		records := []T{}
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return err
		}
		o.Records, o.Err = records, nil
		return nil
	case '{':
		var e ErrorResponse
		if err := json.Unmarshal(trimmed, &e); err != nil {
			return err
		}
		if e.Error == "" {
			return fmt.Errorf("object response without error message: %s", trimmed)
		}
		o.Records, o.Err = nil, &JobError{Message: e.Error}
		return nil
	}
	return fmt.Errorf("unexpected response: %s", trimmed)
}

// MarshalJSON writes the records, or the error object when set
func (o Outcome[T]) MarshalJSON() ([]byte, error) {
	if o.Err != nil {
		return json.Marshal(ErrorResponse{Error: o.Err.Message})
	}
	if o.Records == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(o.Records)
}

// CompositeResponse is the body returned by /fetch-all
type CompositeResponse struct {
	SearchTerm    string         `json:"search_term"`
	Tweets        Outcome[Post]  `json:"tweets"`
	YouTubeVideos Outcome[Video] `json:"youtube_videos"`
}
