package task

import (
	"time"

	"github.com/google/uuid"

	"github.com/taskforge-io/taskforge/auth"
)

// fixtureTasks seeds a fresh store so the first load never shows an empty
// board. Mirrors the built-in development users in config.DefaultConfig.
func fixtureTasks() []*Task {
	now := time.Now().UTC()
	developer := &auth.User{
		ID:    "1",
		Name:  "John Developer",
		Email: "developer@example.com",
		Role:  auth.RoleDeveloper,
	}
	return []*Task{
		{
			ID:             uuid.NewString(),
			Title:          "Implement user authentication",
			Description:    "Add login and registration functionality",
			Type:           TypeFeature,
			Status:         StatusTodo,
			Priority:       PriorityHigh,
			Assignee:       developer,
			DueDate:        now.AddDate(0, 0, 7),
			CreatedAt:      now,
			UpdatedAt:      now,
			EstimatedHours: 8,
			Tags:           []string{"auth", "security"},
			Comments:       []Comment{},
			TimeEntries:    []TimeEntry{},
			Attachments:    []Attachment{},
		},
		{
			ID:             uuid.NewString(),
			Title:          "Fix navigation bug",
			Description:    "Navigation menu not working on mobile devices",
			Type:           TypeBug,
			Status:         StatusInProgress,
			Priority:       PriorityMedium,
			Assignee:       developer,
			DueDate:        now.AddDate(0, 0, 2),
			CreatedAt:      now,
			UpdatedAt:      now,
			EstimatedHours: 4,
			Tags:           []string{"bug", "mobile"},
			Comments:       []Comment{},
			TimeEntries:    []TimeEntry{},
			Attachments:    []Attachment{},
		},
	}
}
