package model

// Template is a reusable notification body a doctor can send.
type Template struct {
	ID       int64    `json:"templateId"`
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Subject  string   `json:"subject"`
	Content  string   `json:"content"`
	Priority Priority `json:"priority"`
	IsActive bool     `json:"isActive"`
}

// TemplateInput is the payload for creating or updating a template.
type TemplateInput struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Subject  string   `json:"subject"`
	Content  string   `json:"content"`
	Priority Priority `json:"priority"`
	IsActive bool     `json:"isActive"`
}
