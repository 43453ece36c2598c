package github

import (
	"fmt"
	"time"
)

// User is the authenticated account identity, as returned by the API.
type User struct {
	Login     string `json:"login"`
	ID        int64  `json:"id"`
	AvatarURL string `json:"avatar_url"`
}

type Label struct {
	Name string `json:"name"`
}

// Issue is the hosted review request document: labeled, commentable, with a
// free-text body that may embed a machine-readable payload.
type Issue struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	State     string    `json:"state"`
	HTMLURL   string    `json:"html_url"`
	Labels    []Label   `json:"labels"`
	User      *User     `json:"user,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasLabel reports whether the issue carries the named label.
func (i *Issue) HasLabel(name string) bool {
	for _, l := range i.Labels {
		if l.Name == name {
			return true
		}
	}
	return false
}

// ListIssuesOptions narrows an issue listing.
type ListIssuesOptions struct {
	State   string
	Labels  string
	PerPage int
}

// CreateIssueRequest is the payload for creating an issue.
type CreateIssueRequest struct {
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Labels []string `json:"labels,omitempty"`
}

// UpdateIssueRequest patches an issue; nil fields are left untouched.
type UpdateIssueRequest struct {
	Body   *string   `json:"body,omitempty"`
	State  *string   `json:"state,omitempty"`
	Labels *[]string `json:"labels,omitempty"`
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode     int
	Message        string
	RateLimitReset time.Time
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("github: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("github: %s (status %d)", e.Message, e.StatusCode)
}

// IsAuthError reports whether err is a 401, meaning the token is missing or
// expired and the user must re-authenticate.
func IsAuthError(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == 401
}

// IsPermissionError reports whether err is a 403 that is not rate limiting.
func IsPermissionError(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == 403 && apiErr.RateLimitReset.IsZero()
}

// IsRateLimited reports whether err is a 403 carrying a rate-limit reset.
func IsRateLimited(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == 403 && !apiErr.RateLimitReset.IsZero()
}
