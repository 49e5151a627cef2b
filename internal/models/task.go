package models

// Task is owned by the remote API, the front-end only holds copies of it.
type Task struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsCompleted bool   `json:"iscompleted"`
}

// User is what gets submitted on registration
type User struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
