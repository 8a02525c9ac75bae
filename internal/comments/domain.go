package comments

import "time"

// Comment is a remark attached to an answer.
type Comment struct {
	ID        int64     `json:"id"`
	AnswerID  int64     `json:"answerId"`
	UserID    int64     `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
