package models

import "time"

// Citation is a {title, url} reference extracted from a url_citation annotation
type Citation struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ArchivedFetch is one completed fetch as recorded in the archive
type ArchivedFetch struct {
	ID        string     `json:"id"`
	URL       string     `json:"url"`
	Provider  string     `json:"provider"`
	Model     string     `json:"model"`
	FetchedAt time.Time  `json:"fetched_at"`
	Text      string     `json:"text,omitempty"`
	Citations []Citation `json:"citations,omitempty"`
	ErrorKind string     `json:"error_kind,omitempty"`
	Error     string     `json:"error,omitempty"`
	Detail    string     `json:"detail,omitempty"`
}

// Succeeded reports whether the archived fetch produced content
func (a *ArchivedFetch) Succeeded() bool {
	return a.ErrorKind == ""
}
