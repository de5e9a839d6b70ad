package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Post statuses
const (
	PostStatusOpen   = "open"
	PostStatusClosed = "closed"
)

// Post represents a meet-up listing.
type Post struct {
	ID                string     `db:"id" json:"id"`
	AuthorID          string     `db:"author_id" json:"author_id"`
	Title             string     `db:"title" json:"title"`
	MaxParticipants   int        `db:"max_participants" json:"max_participants"` // 0 = unlimited
	ParticipantsCount int        `db:"participants_count" json:"participants_count"`
	Status            string     `db:"status" json:"status"`
	Region            string     `db:"region" json:"region"`
	Lat               *float64   `db:"lat" json:"lat,omitempty"`
	Lng               *float64   `db:"lng" json:"lng,omitempty"`
	CreatedAt         *time.Time `db:"created_at" json:"created_at,omitempty"` // nil for imported legacy rows

	// Joined fields (not in posts table)
	Author *UserSummary `json:"author,omitempty"`
}

// IsFull reports whether no further participant can join.
func (p *Post) IsFull() bool {
	return p.MaxParticipants > 0 && p.ParticipantsCount >= p.MaxParticipants
}

// PostLocation is the canonical location of a post.
type PostLocation struct {
	Region string
	Lat    *float64
	Lng    *float64
}

// CreatePostRequest is the request body for creating a post.
type CreatePostRequest struct {
	Title           string       `json:"title"`
	MaxParticipants int          `json:"max_participants"`
	Location        PostLocation `json:"-"`
}

type PostListResponse struct {
	Posts []Post `json:"posts"`
}

// Post constraints
const (
	MaxPostTitleLength  = 100
	DefaultPostListSize = 20
	MaxPostListSize     = 50

	// OtherRegion is the bucket for posts without any region field.
	OtherRegion = "기타"
)

// Post errors
var (
	ErrPostNotFound         = newError(ErrNotFound, "post not found")
	ErrNotPostOwner         = newError(ErrAuthorization, "not the owner of this post")
	ErrTitleRequired        = newError(ErrValidation, "title is required")
	ErrTitleTooLong         = newError(ErrValidation, "title too long")
	ErrInvalidCapacity      = newError(ErrValidation, "max participants must not be negative")
	ErrPostClosed           = newError(ErrCapacity, "post is closed")
	ErrPostFull             = newError(ErrCapacity, "post is full")
	ErrCannotRequestOwnPost = newError(ErrValidation, "cannot request to join your own post")
)

// ParseCreatePostRequest decodes a create-post body. Producers disagree on where
// region and coordinates live, so the location is canonicalised here, once, at
// ingestion. Everything downstream reads only Post.Region, Post.Lat and Post.Lng.
func ParseCreatePostRequest(body []byte) (CreatePostRequest, error) {
	var req CreatePostRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return CreatePostRequest{}, fmt.Errorf("decode post: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return CreatePostRequest{}, fmt.Errorf("decode post fields: %w", err)
	}
	req.Location = CanonicalPostLocation(raw)
	return req, nil
}

// CanonicalPostLocation resolves region from the first present of region, gu,
// dong, area (blank or absent means OtherRegion) and coordinates from
// lat/latitude/location.lat/coords.lat and the matching lng spellings.
func CanonicalPostLocation(raw map[string]any) PostLocation {
	loc := PostLocation{Region: OtherRegion}
	for _, key := range []string{"region", "gu", "dong", "area"} {
		if v, ok := raw[key]; ok && v != nil {
			if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
				loc.Region = s
			}
			break
		}
	}

	loc.Lat = firstNumber(raw, "lat", "latitude", "location.lat", "coords.lat")
	loc.Lng = firstNumber(raw, "lng", "longitude", "location.lng", "coords.lng")
	if loc.Lat == nil || loc.Lng == nil {
		loc.Lat, loc.Lng = nil, nil
	}
	return loc
}

func firstNumber(raw map[string]any, paths ...string) *float64 {
	for _, path := range paths {
		v, ok := lookup(raw, path)
		if !ok || v == nil {
			continue
		}
		if f, ok := v.(float64); ok {
			return &f
		}
		// a present but non-numeric value stops the fallback chain
		return nil
	}
	return nil
}

func lookup(raw map[string]any, path string) (any, bool) {
	head, rest, nested := strings.Cut(path, ".")
	v, ok := raw[head]
	if !ok || !nested {
		return v, ok
	}
	child, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	return lookup(child, rest)
}
