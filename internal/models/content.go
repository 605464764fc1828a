package models

import "time"

// Profile is the public profile of a user. ID is the profile id that other
// tables reference; UserID is the auth user id.
type Profile struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	UserID    string    `json:"user_id" gorm:"size:36;uniqueIndex"`
	Username  string    `json:"username" gorm:"size:50"`
	FullName  string    `json:"full_name" gorm:"size:100"`
	AvatarURL string    `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
}

func (Profile) TableName() string { return "profiles" }

// DisplayName prefers the full name and falls back to the handle
func (p *Profile) DisplayName() string {
	if p == nil {
		return UnknownUser
	}
	if p.FullName != "" {
		return p.FullName
	}
	if p.Username != "" {
		return p.Username
	}
	return UnknownUser
}

// UnknownUser is shown when a sender profile cannot be loaded
const UnknownUser = "Unknown user"

// Tweet is a feed post
type Tweet struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	UserID    string    `json:"user_id" gorm:"size:36;index"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (Tweet) TableName() string { return "tweets" }

// Comment is a reply under a feed post
type Comment struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	TweetID   string    `json:"tweet_id" gorm:"size:36;index"`
	UserID    string    `json:"user_id" gorm:"size:36"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (Comment) TableName() string { return "comments" }
