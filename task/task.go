// Package task defines the task model and the store that owns the task
// collection, its filter/sort configuration, and all derived views.
package task

import (
	"time"

	"github.com/taskforge-io/taskforge/auth"
)

// Status represents the lifecycle state of a task. Any status may move to
// any other; no workflow ordering is enforced.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review"
	StatusDone       Status = "done"
)

// Priority determines task urgency.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// priorityRank orders priorities for sorting. Alphabetic order would
// misrank them.
var priorityRank = map[Priority]int{
	PriorityLow:    0,
	PriorityMedium: 1,
	PriorityHigh:   2,
	PriorityUrgent: 3,
}

// Type classifies the kind of work a task tracks.
type Type string

const (
	TypeFeature Type = "feature"
	TypeBug     Type = "bug"
	TypeTask    Type = "task"
	TypeEpic    Type = "epic"
)

// Comment is a note on a task, owned by exactly one task.
type Comment struct {
	ID         string     `json:"id"`
	Content    string     `json:"content"`
	AuthorID   string     `json:"author_id"`
	AuthorName string     `json:"author_name"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// TimeEntry records an interval of work against a task. An entry with no
// EndTime is open: tracking is in progress.
type TimeEntry struct {
	ID          string     `json:"id"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Duration    int        `json:"duration"` // minutes
	Description string     `json:"description,omitempty"`
	UserID      string     `json:"user_id"`
	UserName    string     `json:"user_name"`
}

// Attachment is a file reference attached to a task.
type Attachment struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	Type       string    `json:"type"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
	UploadedBy string    `json:"uploaded_by"`
}

// Task is a unit of tracked work.
//
// Assignee is a denormalized snapshot taken when the task is assigned; it
// is not refreshed when the user record changes.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`

	Type     Type     `json:"type"`
	Status   Status   `json:"status"`
	Priority Priority `json:"priority"`

	Assignee  *auth.User `json:"assignee,omitempty"`
	DueDate   time.Time  `json:"due_date"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	EstimatedHours float64 `json:"estimated_hours"`
	ActualHours    float64 `json:"actual_hours"`
	// TotalTimeSpent is kept equal to the sum of Duration over TimeEntries,
	// maintained incrementally by the store on every time-entry mutation.
	TotalTimeSpent int `json:"total_time_spent"` // minutes

	Tags        []string     `json:"tags"`
	Comments    []Comment    `json:"comments"`
	TimeEntries []TimeEntry  `json:"time_entries"`
	Attachments []Attachment `json:"attachments"`

	ParentTaskID string   `json:"parent_task_id,omitempty"`
	Subtasks     []Task   `json:"subtasks,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`  // task ids
	RelatedTasks []string `json:"related_tasks,omitempty"` // task ids

	SprintID           string   `json:"sprint_id,omitempty"`
	StoryPoints        int      `json:"story_points,omitempty"`
	AcceptanceCriteria []string `json:"acceptance_criteria,omitempty"`
	TestCases          []string `json:"test_cases,omitempty"`
}

// clone returns a deep copy of the task so callers never hold an alias
// into store-owned state.
func (t *Task) clone() *Task {
	c := *t
	if t.Assignee != nil {
		u := *t.Assignee
		c.Assignee = &u
	}
	c.Tags = append([]string(nil), t.Tags...)
	c.Comments = append([]Comment(nil), t.Comments...)
	c.TimeEntries = append([]TimeEntry(nil), t.TimeEntries...)
	c.Attachments = append([]Attachment(nil), t.Attachments...)
	c.Subtasks = append([]Task(nil), t.Subtasks...)
	c.Dependencies = append([]string(nil), t.Dependencies...)
	c.RelatedTasks = append([]string(nil), t.RelatedTasks...)
	c.AcceptanceCriteria = append([]string(nil), t.AcceptanceCriteria...)
	c.TestCases = append([]string(nil), t.TestCases...)
	return &c
}

// Patch carries a partial task update. Nil fields are left unchanged.
type Patch struct {
	Title              *string    `json:"title,omitempty"`
	Description        *string    `json:"description,omitempty"`
	Type               *Type      `json:"type,omitempty"`
	Status             *Status    `json:"status,omitempty"`
	Priority           *Priority  `json:"priority,omitempty"`
	Assignee           *auth.User `json:"assignee,omitempty"`
	DueDate            *time.Time `json:"due_date,omitempty"`
	EstimatedHours     *float64   `json:"estimated_hours,omitempty"`
	ActualHours        *float64   `json:"actual_hours,omitempty"`
	Tags               *[]string  `json:"tags,omitempty"`
	SprintID           *string    `json:"sprint_id,omitempty"`
	StoryPoints        *int       `json:"story_points,omitempty"`
	AcceptanceCriteria *[]string  `json:"acceptance_criteria,omitempty"`
	TestCases          *[]string  `json:"test_cases,omitempty"`
}

// TimeEntryPatch carries a partial time-entry update. Nil fields are left
// unchanged.
type TimeEntryPatch struct {
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Duration    *int       `json:"duration,omitempty"` // minutes
	Description *string    `json:"description,omitempty"`
}

// DateRange is an inclusive due-date window.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Filter is the conjunctive predicate set narrowing the visible task list.
// Nil fields impose no constraint; boolean predicates constrain only when
// set to true.
type Filter struct {
	Status   *Status   `json:"status,omitempty"`
	Priority *Priority `json:"priority,omitempty"`
	Type     *Type     `json:"type,omitempty"`
	Assignee *string   `json:"assignee,omitempty"` // assignee user id
	Search   *string   `json:"search,omitempty"`   // case-insensitive, title or description

	DateRange *DateRange `json:"date_range,omitempty"`
	Tags      []string   `json:"tags,omitempty"` // all must be present
	SprintID  *string    `json:"sprint_id,omitempty"`

	HasAttachments  *bool `json:"has_attachments,omitempty"`
	HasComments     *bool `json:"has_comments,omitempty"`
	IsOverdue       *bool `json:"is_overdue,omitempty"`
	HasSubtasks     *bool `json:"has_subtasks,omitempty"`
	HasDependencies *bool `json:"has_dependencies,omitempty"`
	HasRelatedTasks *bool `json:"has_related_tasks,omitempty"`
}

// SortField names a sortable task attribute.
type SortField string

const (
	SortByTitle          SortField = "title"
	SortByDueDate        SortField = "due_date"
	SortByCreatedAt      SortField = "created_at"
	SortByUpdatedAt      SortField = "updated_at"
	SortByPriority       SortField = "priority"
	SortByStatus         SortField = "status"
	SortByEstimatedHours SortField = "estimated_hours"
	SortByTotalTimeSpent SortField = "total_time_spent"
	SortByStoryPoints    SortField = "story_points"
)

// Direction orders a sort ascending or descending.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Sort is the field + direction determining task list order.
type Sort struct {
	Field     SortField `json:"field"`
	Direction Direction `json:"direction"`
}

// DefaultSort is the order used until a caller configures one.
var DefaultSort = Sort{Field: SortByCreatedAt, Direction: Desc}
