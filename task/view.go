package task

import (
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// collator orders string sort fields. Locale-aware so titles with accented
// characters land where a reader expects them. Collators compare through
// shared internal buffers and are not safe for concurrent use, so every
// title sort must hold collatorMu; Filtered's read lock admits parallel
// readers.
var (
	collatorMu sync.Mutex
	collator   = collate.New(language.English, collate.Loose)
)

// SetFilters shallow-merges the populated fields of f into the active
// filter state and persists it.
func (s *Store) SetFilters(f Filter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mergeFilters(&s.filters, f)
	s.storage.Set(keyFilters, s.filters)
}

// ClearFilters drops every active filter predicate.
func (s *Store) ClearFilters() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.filters = Filter{}
	s.storage.Set(keyFilters, s.filters)
}

// Filters returns the active filter state.
func (s *Store) Filters() Filter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f := s.filters
	f.Tags = append([]string(nil), s.filters.Tags...)
	return f
}

// SetSort replaces the sort state wholesale and persists it.
func (s *Store) SetSort(so Sort) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sort = so
	s.storage.Set(keySort, s.sort)
}

// SortConfig returns the active sort state.
func (s *Store) SortConfig() Sort {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sort
}

func mergeFilters(dst *Filter, f Filter) {
	if f.Status != nil {
		dst.Status = f.Status
	}
	if f.Priority != nil {
		dst.Priority = f.Priority
	}
	if f.Type != nil {
		dst.Type = f.Type
	}
	if f.Assignee != nil {
		dst.Assignee = f.Assignee
	}
	if f.Search != nil {
		dst.Search = f.Search
	}
	if f.DateRange != nil {
		dst.DateRange = f.DateRange
	}
	if f.Tags != nil {
		dst.Tags = append([]string(nil), f.Tags...)
	}
	if f.SprintID != nil {
		dst.SprintID = f.SprintID
	}
	if f.HasAttachments != nil {
		dst.HasAttachments = f.HasAttachments
	}
	if f.HasComments != nil {
		dst.HasComments = f.HasComments
	}
	if f.IsOverdue != nil {
		dst.IsOverdue = f.IsOverdue
	}
	if f.HasSubtasks != nil {
		dst.HasSubtasks = f.HasSubtasks
	}
	if f.HasDependencies != nil {
		dst.HasDependencies = f.HasDependencies
	}
	if f.HasRelatedTasks != nil {
		dst.HasRelatedTasks = f.HasRelatedTasks
	}
}

// Filtered derives the visible task list on demand: every populated filter
// predicate must hold (conjunction), then the active sort is applied.
// The sort is stable: ties keep their prior relative order.
func (s *Store) Filtered() []*Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Task
	for _, t := range s.tasks {
		if matches(t, s.filters) {
			out = append(out, t.clone())
		}
	}
	sortTasks(out, s.sort)
	return out
}

// matches reports whether the task satisfies every active predicate.
func matches(t *Task, f Filter) bool {
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	if f.Type != nil && t.Type != *f.Type {
		return false
	}
	if f.Assignee != nil && (t.Assignee == nil || t.Assignee.ID != *f.Assignee) {
		return false
	}
	if f.Search != nil && *f.Search != "" {
		q := strings.ToLower(*f.Search)
		if !strings.Contains(strings.ToLower(t.Title), q) &&
			!strings.Contains(strings.ToLower(t.Description), q) {
			return false
		}
	}
	if f.DateRange != nil {
		if t.DueDate.Before(f.DateRange.Start) || t.DueDate.After(f.DateRange.End) {
			return false
		}
	}
	if len(f.Tags) > 0 {
		for _, want := range f.Tags {
			found := false
			for _, have := range t.Tags {
				if have == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	if f.SprintID != nil && t.SprintID != *f.SprintID {
		return false
	}
	if isSet(f.HasAttachments) && len(t.Attachments) == 0 {
		return false
	}
	if isSet(f.HasComments) && len(t.Comments) == 0 {
		return false
	}
	if isSet(f.IsOverdue) && !overdue(t, time.Now()) {
		return false
	}
	if isSet(f.HasSubtasks) && len(t.Subtasks) == 0 {
		return false
	}
	if isSet(f.HasDependencies) && len(t.Dependencies) == 0 {
		return false
	}
	if isSet(f.HasRelatedTasks) && len(t.RelatedTasks) == 0 {
		return false
	}
	return true
}

// isSet reports whether a boolean predicate constrains: nil and false both
// mean "no constraint".
func isSet(b *bool) bool { return b != nil && *b }

// overdue: due date strictly in the past and the task is not done.
func overdue(t *Task, now time.Time) bool {
	return t.DueDate.Before(now) && t.Status != StatusDone
}

// sortTasks stably orders tasks by the configured field and direction.
// Date fields compare chronologically, priority by its explicit rank,
// strings by collation, numerics numerically.
func sortTasks(tasks []*Task, so Sort) {
	if so.Field == "" {
		return
	}
	if so.Field == SortByTitle {
		collatorMu.Lock()
		defer collatorMu.Unlock()
	}
	sign := 1
	if so.Direction == Desc {
		sign = -1
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		return sign*compareTasks(tasks[i], tasks[j], so.Field) < 0
	})
}

func compareTasks(a, b *Task, field SortField) int {
	switch field {
	case SortByTitle:
		return collator.CompareString(a.Title, b.Title)
	case SortByDueDate:
		return a.DueDate.Compare(b.DueDate)
	case SortByCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	case SortByUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case SortByPriority:
		return priorityRank[a.Priority] - priorityRank[b.Priority]
	case SortByStatus:
		return strings.Compare(string(a.Status), string(b.Status))
	case SortByEstimatedHours:
		return compareFloats(a.EstimatedHours, b.EstimatedHours)
	case SortByTotalTimeSpent:
		return a.TotalTimeSpent - b.TotalTimeSpent
	case SortByStoryPoints:
		return a.StoryPoints - b.StoryPoints
	default:
		return 0
	}
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Stats summarizes the collection for the overview panel.
type Stats struct {
	Total        int `json:"total"`
	Todo         int `json:"todo"`
	InProgress   int `json:"in_progress"`
	Review       int `json:"review"`
	Done         int `json:"done"`
	HighPriority int `json:"high_priority"` // high or urgent
	Overdue      int `json:"overdue"`
}

// Stats derives per-status, high-priority, and overdue counts.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	var st Stats
	st.Total = len(s.tasks)
	for _, t := range s.tasks {
		switch t.Status {
		case StatusTodo:
			st.Todo++
		case StatusInProgress:
			st.InProgress++
		case StatusReview:
			st.Review++
		case StatusDone:
			st.Done++
		}
		if t.Priority == PriorityHigh || t.Priority == PriorityUrgent {
			st.HighPriority++
		}
		if overdue(t, now) {
			st.Overdue++
		}
	}
	return st
}

// DayReport is one day of the time-tracking report.
type DayReport struct {
	Date          string `json:"date"` // YYYY-MM-DD
	TasksCreated  int    `json:"tasks_created"`
	MinutesLogged int    `json:"minutes_logged"`
}

// TimeReport derives the trailing per-day series behind the manager chart:
// tasks created and minutes logged for each of the last days days, oldest
// first.
func (s *Store) TimeReport(days int) []DayReport {
	if days <= 0 {
		days = 7
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	today := time.Now().UTC().Truncate(24 * time.Hour)
	byDate := make(map[string]*DayReport, days)
	out := make([]DayReport, days)
	for i := 0; i < days; i++ {
		date := today.AddDate(0, 0, i-days+1).Format("2006-01-02")
		out[i] = DayReport{Date: date}
		byDate[date] = &out[i]
	}

	for _, t := range s.tasks {
		if r, ok := byDate[t.CreatedAt.UTC().Format("2006-01-02")]; ok {
			r.TasksCreated++
		}
		for _, e := range t.TimeEntries {
			if r, ok := byDate[e.StartTime.UTC().Format("2006-01-02")]; ok {
				r.MinutesLogged += e.Duration
			}
		}
	}
	return out
}
