// internal/server/handlers.go
package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/valpere/FeedHarvester/internal/harvest"
	"github.com/valpere/FeedHarvester/pkg/types"
)

const (
	defaultSearchTerm  = "unknown"
	defaultNumRecords  = 10
	defaultNumComments = 50
	maxBodyBytes       = 1 << 20
)

// count accepts a JSON number or a numeric string
type count struct {
	value int
	set   bool
}

func (c *count) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "null" || s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("invalid count %s", data)
		}
		n = int(f)
	}
	c.value, c.set = n, true
	return nil
}

func (c count) or(def int) int {
	if !c.set {
		return def
	}
	return c.value
}

type postsRequest struct {
	SearchTerm *string `json:"search_term"`
	NumTweets  count   `json:"num_tweets"`
}

type videosRequest struct {
	SearchTerm *string `json:"search_term"`
	NumVideos  count   `json:"num_videos"`
}

type commentsRequest struct {
	VideoURL    string `json:"video_url"`
	NumComments count  `json:"num_comments"`
}

type allRequest struct {
	SearchTerm *string `json:"search_term"`
	NumTweets  count   `json:"num_tweets"`
	NumVideos  count   `json:"num_videos"`
}

func searchTerm(s *string) string {
	if s == nil {
		return defaultSearchTerm
	}
	return *s
}

func (s *Server) handleFetchPosts(w http.ResponseWriter, r *http.Request) {
	var req postsRequest
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := s.jobContext(r)
	defer cancel()

	res := s.runner.Harvest(ctx, harvest.Target{
		Kind:  harvest.KindPost,
		Query: searchTerm(req.SearchTerm),
		Limit: req.NumTweets.or(defaultNumRecords),
	})
	writeJSON(w, http.StatusOK, s.renderResult(res))
}

func (s *Server) handleFetchVideos(w http.ResponseWriter, r *http.Request) {
	var req videosRequest
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := s.jobContext(r)
	defer cancel()

	res := s.runner.Harvest(ctx, harvest.Target{
		Kind:  harvest.KindVideo,
		Query: searchTerm(req.SearchTerm),
		Limit: req.NumVideos.or(defaultNumRecords),
	})
	writeJSON(w, http.StatusOK, s.renderResult(res))
}

func (s *Server) handleFetchComments(w http.ResponseWriter, r *http.Request) {
	var req commentsRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.VideoURL) == "" {
		writeError(w, http.StatusOK, "video_url is required")
		return
	}
	ctx, cancel := s.jobContext(r)
	defer cancel()

	res := s.runner.Harvest(ctx, harvest.Target{
		Kind:  harvest.KindComment,
		URL:   req.VideoURL,
		Limit: req.NumComments.or(defaultNumComments),
	})
	writeJSON(w, http.StatusOK, s.renderResult(res))
}

func (s *Server) handleFetchAll(w http.ResponseWriter, r *http.Request) {
	var req allRequest
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := s.jobContext(r)
	defer cancel()

	term := searchTerm(req.SearchTerm)
	res := s.runner.HarvestAll(ctx, term, req.NumTweets.or(defaultNumRecords), req.NumVideos.or(defaultNumRecords))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"search_term":    term,
		"tweets":         s.renderResult(res.Posts),
		"youtube_videos": s.renderResult(res.Videos),
	})
}

// renderResult yields the record list, or an error object when the job
// failed
func (s *Server) renderResult(res *harvest.Result) interface{} {
	if res == nil {
		return errorBody("job did not run")
	}
	if res.Err != nil {
		s.logger.WithFields(map[string]interface{}{
			"job_id":    res.JobID,
			"kind":      res.Kind,
			"collected": len(res.Records),
		}).Warnf("Job failed: %v", res.Err)
		return errorBody(res.Err.Error())
	}
	if res.Records == nil {
		return []harvest.Record{}
	}
	return res.Records
}

// decode reads a JSON body. An empty body decodes as an empty object.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read request body: %v", err))
		return false
	}
	if strings.TrimSpace(string(body)) == "" {
		return true
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	return true
}

func errorBody(msg string) types.ErrorResponse {
	return types.ErrorResponse{Error: msg}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody(msg))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
