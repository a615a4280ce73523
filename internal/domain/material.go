package domain

import "time"

type Attachment struct {
	Key         string `json:"key" dynamodbav:"key"`
	Name        string `json:"name" dynamodbav:"name"`
	ContentType string `json:"contentType" dynamodbav:"content_type"`
	Size        int64  `json:"size" dynamodbav:"size"`
	Hash        string `json:"hash" dynamodbav:"hash"`
	URL         string `json:"url,omitempty" dynamodbav:"-"`
}

type Material struct {
	MaterialID  string       `json:"id" dynamodbav:"material_id"`
	Title       string       `json:"title" dynamodbav:"title"`
	Content     string       `json:"content" dynamodbav:"content"`
	AuthorID    string       `json:"authorId" dynamodbav:"author_id"`
	Attachments []Attachment `json:"attachments" dynamodbav:"attachments"`
	CreatedAt   time.Time    `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt   time.Time    `json:"updatedAt" dynamodbav:"updated_at"`
}
