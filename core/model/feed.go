package model

import "time"

// Post 描述用户发布的一条动态。
type Post struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Comment 描述一条评论。
type Comment struct {
	ID     string `json:"id"`
	PostID string `json:"postId"`
	Author string `json:"author"`
	Body   string `json:"body"`
}
