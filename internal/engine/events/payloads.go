package events

import "time"

type Employee struct {
	ID         string
	FirstName  string
	LastName   string
	Email      string
	Department string
	Position   string
	Status     string
}

type Task struct {
	ID         string
	Title      string
	Status     string
	Priority   string
	AssigneeID string
	DueDate    *time.Time
}

type Email struct {
	ID         string
	MessageID  string
	From       string
	To         []string
	Subject    string
	Folder     string
	ReceivedAt time.Time
}

func EmployeeData(e Employee) map[string]any {
	return map[string]any{
		"id":         e.ID,
		"firstName":  e.FirstName,
		"lastName":   e.LastName,
		"email":      e.Email,
		"department": e.Department,
		"position":   e.Position,
		"status":     e.Status,
	}
}

func TaskData(t Task) map[string]any {
	data := map[string]any{
		"id":         t.ID,
		"title":      t.Title,
		"status":     t.Status,
		"priority":   t.Priority,
		"assigneeId": t.AssigneeID,
		"dueDate":    nil,
	}
	if t.DueDate != nil {
		data["dueDate"] = t.DueDate.UTC().Format(time.RFC3339)
	}
	return data
}

func EmailData(m Email) map[string]any {
	to := m.To
	if to == nil {
		to = []string{}
	}
	data := map[string]any{
		"id":        m.ID,
		"messageId": m.MessageID,
		"from":      m.From,
		"to":        to,
		"subject":   m.Subject,
		"folder":    m.Folder,
	}
	if !m.ReceivedAt.IsZero() {
		data["receivedAt"] = m.ReceivedAt.UTC().Format(time.RFC3339)
	}
	return data
}

// WithChanges attaches the changed fields of an update event under "changes".
func WithChanges(data map[string]any, changes map[string]any) map[string]any {
	if changes == nil {
		changes = map[string]any{}
	}
	data["changes"] = changes
	return data
}
