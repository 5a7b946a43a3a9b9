package models

import "time"

type User struct {
	ID            int64
	Username      string
	Email         string
	FullName      string
	PassHash      []byte
	RefreshToken  *string
	AvatarURL     string
	AvatarKey     string
	CoverImageURL string
	CoverImageKey string
	CreatedAt     time.Time
}

// Public strips the credential and session fields before the record
// leaves the service boundary.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FullName:      u.FullName,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
		CreatedAt:     u.CreatedAt,
	}
}

type PublicUser struct {
	ID            int64     `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"full_name"`
	AvatarURL     string    `json:"avatar_url,omitempty"`
	CoverImageURL string    `json:"cover_image_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type Video struct {
	ID           int64     `json:"id"`
	OwnerID      int64     `json:"owner_id"`
	Title        string    `json:"title"`
	Duration     int64     `json:"duration_seconds"`
	FileURL      string    `json:"file_url"`
	ThumbnailURL string    `json:"thumbnail_url"`
	CreatedAt    time.Time `json:"created_at"`
}

type ChannelProfile struct {
	ID              int64  `json:"id"`
	Username        string `json:"username"`
	FullName        string `json:"full_name"`
	Email           string `json:"email"`
	AvatarURL       string `json:"avatar_url,omitempty"`
	CoverImageURL   string `json:"cover_image_url,omitempty"`
	SubscriberCount int64  `json:"subscriber_count"`
	SubscribedCount int64  `json:"subscribed_count"`
	IsSubscribed    bool   `json:"is_subscribed"`
}

type VideoOwner struct {
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type WatchEntry struct {
	Video     Video      `json:"video"`
	Owner     VideoOwner `json:"owner"`
	WatchedAt time.Time  `json:"watched_at"`
}

type Message struct {
	Email    string `json:"to"`
	Username string `json:"username"`
	Purpose  string `json:"purpose"`
}
