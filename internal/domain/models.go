package domain

import "time"

// Domain contains core models and interfaces.

type Page struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	Host       string    `json:"host"`
	StatusLine string    `json:"status_line"`
	Charset    string    `json:"charset"`
	Title      string    `json:"title"`
	Text       string    `json:"text"`
	Digest     string    `json:"digest"`
	FetchedAt  time.Time `json:"fetched_at"`
}
