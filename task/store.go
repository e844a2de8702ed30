package task

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskforge-io/taskforge/activity"
	"github.com/taskforge-io/taskforge/auth"
	"github.com/taskforge-io/taskforge/storage"
)

// Storage keys for the persisted collection and view configuration.
const (
	keyTasks   = "tasks"
	keyFilters = "task-filters"
	keySort    = "task-sort"
)

// SessionSource supplies the current session user, used as the default
// assignee and as the actor on comments, timers, and activity events.
type SessionSource interface {
	Current() *auth.User
}

// Store owns the task collection and the active filter/sort configuration.
// All mutation is funneled through its methods; callers receive copies,
// never aliases into store state. Every change is persisted through the
// storage wrapper and announced on the activity feed.
type Store struct {
	mu      sync.RWMutex
	tasks   []*Task
	filters Filter
	sort    Sort

	storage *storage.Store
	session SessionSource
	feed    activity.Feed
	logger  *slog.Logger
}

// NewStore builds a task store. session and feed may be nil (no default
// assignee, no change feed); storage must not be.
func NewStore(st *storage.Store, session SessionSource, feed activity.Feed, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		sort:    DefaultSort,
		storage: st,
		session: session,
		feed:    feed,
		logger:  logger,
	}
}

// Initialize loads the persisted collection and view configuration, seeding
// the collection with fixture data when empty so a first load never renders
// an uninitialized state. Idempotent.
func (s *Store) Initialize() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stored []*Task
	if s.storage.Get(keyTasks, &stored) && len(stored) > 0 {
		s.tasks = stored
	} else if len(s.tasks) == 0 {
		s.tasks = fixtureTasks()
		s.persistTasksLocked()
		s.logger.Info("seeded task store", slog.Int("tasks", len(s.tasks)))
	}

	var f Filter
	if s.storage.Get(keyFilters, &f) {
		s.filters = f
	}
	var so Sort
	if s.storage.Get(keySort, &so) && so.Field != "" {
		s.sort = so
	}
}

// --- task CRUD ---

// Add fills required fields with defaults, assigns a fresh id and
// timestamps, and appends the task. The assignee defaults to the current
// session user. No validation beyond defaulting: callers own title/dueDate
// correctness.
func (s *Store) Add(t Task) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := s.newTaskLocked(t, "")
	s.tasks = append(s.tasks, created)
	s.persistTasksLocked()
	s.publish(activity.TypeTaskCreated, created.ID, fmt.Sprintf("created %q", created.Title))
	return created.clone()
}

// newTaskLocked applies creation defaults. Nested collections always start
// empty regardless of input.
func (s *Store) newTaskLocked(t Task, parentID string) *Task {
	now := time.Now().UTC()
	t.ID = uuid.NewString()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.ParentTaskID = parentID
	if t.Status == "" {
		t.Status = StatusTodo
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Type == "" {
		t.Type = TypeFeature
	}
	if t.DueDate.IsZero() {
		t.DueDate = now
	}
	if t.Assignee == nil && s.session != nil {
		t.Assignee = s.session.Current()
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	t.Comments = []Comment{}
	t.TimeEntries = []TimeEntry{}
	t.Attachments = []Attachment{}
	t.Subtasks = nil
	t.TotalTimeSpent = 0
	return &t
}

// Update merges the patch into the task matching id and refreshes
// UpdatedAt. Returns false (no-op) when id is not found.
func (s *Store) Update(id string, p Patch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findLocked(id)
	if t == nil {
		return false
	}
	applyPatch(t, p)
	t.UpdatedAt = time.Now().UTC()
	s.persistTasksLocked()
	s.publish(activity.TypeTaskUpdated, id, fmt.Sprintf("updated %q", t.Title))
	return true
}

func applyPatch(t *Task, p Patch) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Assignee != nil {
		u := *p.Assignee
		t.Assignee = &u
	}
	if p.DueDate != nil {
		t.DueDate = *p.DueDate
	}
	if p.EstimatedHours != nil {
		t.EstimatedHours = *p.EstimatedHours
	}
	if p.ActualHours != nil {
		t.ActualHours = *p.ActualHours
	}
	if p.Tags != nil {
		t.Tags = append([]string(nil), *p.Tags...)
	}
	if p.SprintID != nil {
		t.SprintID = *p.SprintID
	}
	if p.StoryPoints != nil {
		t.StoryPoints = *p.StoryPoints
	}
	if p.AcceptanceCriteria != nil {
		t.AcceptanceCriteria = append([]string(nil), *p.AcceptanceCriteria...)
	}
	if p.TestCases != nil {
		t.TestCases = append([]string(nil), *p.TestCases...)
	}
}

// UpdateStatus is a convenience wrapper over Update for status changes.
func (s *Store) UpdateStatus(id string, status Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findLocked(id)
	if t == nil {
		return false
	}
	t.Status = status
	t.UpdatedAt = time.Now().UTC()
	s.persistTasksLocked()
	s.publish(activity.TypeStatusChanged, id, fmt.Sprintf("%q moved to %s", t.Title, status))
	return true
}

// Delete removes the task matching id. Returns false (no-op) when absent.
//
// Deletion does not cascade: other tasks keep any dependency, related-task,
// or parent references to the removed id. Readers treat such ids as opaque.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, t := range s.tasks {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	title := s.tasks[idx].Title
	s.tasks = append(s.tasks[:idx], s.tasks[idx+1:]...)
	s.persistTasksLocked()
	s.publish(activity.TypeTaskDeleted, id, fmt.Sprintf("deleted %q", title))
	return true
}

// Get returns a copy of the task matching id.
func (s *Store) Get(id string) (*Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := s.findLocked(id)
	if t == nil {
		return nil, false
	}
	return t.clone(), true
}

// List returns copies of all tasks in insertion order.
func (s *Store) List() []*Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Task, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.clone()
	}
	return out
}

// --- comments ---

// AddComment appends a comment to the task, assigning a fresh id and
// creation time. The author defaults to the session user when unset.
// Returns nil when the task is not found.
func (s *Store) AddComment(taskID string, c Comment) *Comment {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findLocked(taskID)
	if t == nil {
		return nil
	}
	now := time.Now().UTC()
	c.ID = uuid.NewString()
	c.CreatedAt = now
	c.UpdatedAt = nil
	if c.AuthorID == "" && s.session != nil {
		if u := s.session.Current(); u != nil {
			c.AuthorID = u.ID
			c.AuthorName = u.Name
		}
	}
	t.Comments = append(t.Comments, c)
	t.UpdatedAt = now
	s.persistTasksLocked()
	s.publish(activity.TypeCommentAdded, taskID, fmt.Sprintf("%s commented on %q", c.AuthorName, t.Title))
	out := c
	return &out
}

// UpdateComment replaces the content of the comment matching commentID and
// stamps its UpdatedAt. No-op when the task or comment is not found.
func (s *Store) UpdateComment(taskID, commentID, content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findLocked(taskID)
	if t == nil {
		return false
	}
	for i := range t.Comments {
		if t.Comments[i].ID != commentID {
			continue
		}
		now := time.Now().UTC()
		t.Comments[i].Content = content
		t.Comments[i].UpdatedAt = &now
		t.UpdatedAt = now
		s.persistTasksLocked()
		return true
	}
	return false
}

// DeleteComment removes the comment matching commentID. No-op when the
// task or comment is not found.
func (s *Store) DeleteComment(taskID, commentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findLocked(taskID)
	if t == nil {
		return false
	}
	for i := range t.Comments {
		if t.Comments[i].ID != commentID {
			continue
		}
		t.Comments = append(t.Comments[:i], t.Comments[i+1:]...)
		t.UpdatedAt = time.Now().UTC()
		s.persistTasksLocked()
		return true
	}
	return false
}

// --- time entries ---

// AddTimeEntry appends a time entry, assigning a fresh id, and adds its
// duration to the task's TotalTimeSpent. The user defaults to the session
// user when unset. Returns nil when the task is not found.
func (s *Store) AddTimeEntry(taskID string, e TimeEntry) *TimeEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findLocked(taskID)
	if t == nil {
		return nil
	}
	now := time.Now().UTC()
	e.ID = uuid.NewString()
	if e.StartTime.IsZero() {
		e.StartTime = now
	}
	if e.UserID == "" && s.session != nil {
		if u := s.session.Current(); u != nil {
			e.UserID = u.ID
			e.UserName = u.Name
		}
	}
	t.TimeEntries = append(t.TimeEntries, e)
	t.TotalTimeSpent += e.Duration
	t.UpdatedAt = now
	s.persistTasksLocked()
	s.publish(activity.TypeTimeLogged, taskID, fmt.Sprintf("%dm logged on %q", e.Duration, t.Title))
	out := e
	return &out
}

// UpdateTimeEntry merges the patch into the entry matching entryID and
// adjusts TotalTimeSpent by the duration delta. No-op when the task or
// entry is not found.
func (s *Store) UpdateTimeEntry(taskID, entryID string, p TimeEntryPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findLocked(taskID)
	if t == nil {
		return false
	}
	for i := range t.TimeEntries {
		e := &t.TimeEntries[i]
		if e.ID != entryID {
			continue
		}
		if p.StartTime != nil {
			e.StartTime = *p.StartTime
		}
		if p.EndTime != nil {
			end := *p.EndTime
			e.EndTime = &end
		}
		if p.Description != nil {
			e.Description = *p.Description
		}
		if p.Duration != nil {
			t.TotalTimeSpent += *p.Duration - e.Duration
			e.Duration = *p.Duration
		}
		t.UpdatedAt = time.Now().UTC()
		s.persistTasksLocked()
		return true
	}
	return false
}

// DeleteTimeEntry removes the entry matching entryID and subtracts its
// duration from TotalTimeSpent. No-op when the task or entry is not found.
func (s *Store) DeleteTimeEntry(taskID, entryID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findLocked(taskID)
	if t == nil {
		return false
	}
	for i := range t.TimeEntries {
		if t.TimeEntries[i].ID != entryID {
			continue
		}
		t.TotalTimeSpent -= t.TimeEntries[i].Duration
		t.TimeEntries = append(t.TimeEntries[:i], t.TimeEntries[i+1:]...)
		t.UpdatedAt = time.Now().UTC()
		s.persistTasksLocked()
		return true
	}
	return false
}

// StartTimer opens a tracking entry (no end time, zero duration) for the
// session user. When an open entry already exists it is returned unchanged.
// Returns nil when the task is not found.
func (s *Store) StartTimer(taskID string) *TimeEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findLocked(taskID)
	if t == nil {
		return nil
	}
	if open := openEntry(t); open != nil {
		out := *open
		return &out
	}
	now := time.Now().UTC()
	e := TimeEntry{
		ID:        uuid.NewString(),
		StartTime: now,
	}
	if s.session != nil {
		if u := s.session.Current(); u != nil {
			e.UserID = u.ID
			e.UserName = u.Name
		}
	}
	t.TimeEntries = append(t.TimeEntries, e)
	t.UpdatedAt = now
	s.persistTasksLocked()
	s.publish(activity.TypeTimerStarted, taskID, fmt.Sprintf("timer started on %q", t.Title))
	out := e
	return &out
}

// StopTimer closes the open tracking entry, computing its duration in
// whole minutes of elapsed wall-clock time and adding it to
// TotalTimeSpent. Returns nil when the task is not found or no entry is
// open.
func (s *Store) StopTimer(taskID string) *TimeEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findLocked(taskID)
	if t == nil {
		return nil
	}
	open := openEntry(t)
	if open == nil {
		return nil
	}
	now := time.Now().UTC()
	open.EndTime = &now
	open.Duration = int(now.Sub(open.StartTime).Minutes())
	t.TotalTimeSpent += open.Duration
	t.UpdatedAt = now
	s.persistTasksLocked()
	s.publish(activity.TypeTimerStopped, taskID, fmt.Sprintf("timer stopped on %q (%dm)", t.Title, open.Duration))
	out := *open
	return &out
}

// openEntry returns the newest entry with no end time.
func openEntry(t *Task) *TimeEntry {
	for i := len(t.TimeEntries) - 1; i >= 0; i-- {
		if t.TimeEntries[i].EndTime == nil {
			return &t.TimeEntries[i]
		}
	}
	return nil
}

// --- attachments ---

// AddAttachment appends an attachment, assigning a fresh id and upload
// time. The uploader defaults to the session user when unset. Returns nil
// when the task is not found.
func (s *Store) AddAttachment(taskID string, a Attachment) *Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findLocked(taskID)
	if t == nil {
		return nil
	}
	now := time.Now().UTC()
	a.ID = uuid.NewString()
	a.UploadedAt = now
	if a.UploadedBy == "" && s.session != nil {
		if u := s.session.Current(); u != nil {
			a.UploadedBy = u.Name
		}
	}
	t.Attachments = append(t.Attachments, a)
	t.UpdatedAt = now
	s.persistTasksLocked()
	s.publish(activity.TypeAttachment, taskID, fmt.Sprintf("%q attached to %q", a.Name, t.Title))
	out := a
	return &out
}

// DeleteAttachment removes the attachment matching attachmentID. No-op
// when the task or attachment is not found.
func (s *Store) DeleteAttachment(taskID, attachmentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findLocked(taskID)
	if t == nil {
		return false
	}
	for i := range t.Attachments {
		if t.Attachments[i].ID != attachmentID {
			continue
		}
		t.Attachments = append(t.Attachments[:i], t.Attachments[i+1:]...)
		t.UpdatedAt = time.Now().UTC()
		s.persistTasksLocked()
		return true
	}
	return false
}

// --- subtasks, dependencies, related tasks ---

// AddSubtask creates a new task under parentID: it joins the collection as
// a task of its own (ParentTaskID set) and is snapshotted into the parent's
// subtask list. Returns nil when the parent is not found.
func (s *Store) AddSubtask(parentID string, t Task) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent := s.findLocked(parentID)
	if parent == nil {
		return nil
	}
	sub := s.newTaskLocked(t, parentID)
	s.tasks = append(s.tasks, sub)
	parent.Subtasks = append(parent.Subtasks, *sub.clone())
	parent.UpdatedAt = time.Now().UTC()
	s.persistTasksLocked()
	s.publish(activity.TypeTaskCreated, sub.ID, fmt.Sprintf("subtask %q added to %q", sub.Title, parent.Title))
	return sub.clone()
}

// RemoveSubtask deletes the subtask from the collection and drops it from
// the parent's subtask list. No-op when parent or subtask is not found.
func (s *Store) RemoveSubtask(parentID, subtaskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent := s.findLocked(parentID)
	if parent == nil {
		return false
	}
	removed := false
	for i, t := range s.tasks {
		if t.ID == subtaskID {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			removed = true
			break
		}
	}
	kept := parent.Subtasks[:0]
	for _, st := range parent.Subtasks {
		if st.ID != subtaskID {
			kept = append(kept, st)
		} else {
			removed = true
		}
	}
	parent.Subtasks = kept
	if !removed {
		return false
	}
	parent.UpdatedAt = time.Now().UTC()
	s.persistTasksLocked()
	s.publish(activity.TypeTaskDeleted, subtaskID, fmt.Sprintf("subtask removed from %q", parent.Title))
	return true
}

// AddDependency records that the task depends on dependencyID. Duplicate
// ids are ignored; no cycle detection is performed. No-op when the task is
// not found.
func (s *Store) AddDependency(taskID, dependencyID string) bool {
	return s.addLink(taskID, dependencyID, false)
}

// RemoveDependency drops dependencyID from the task's dependency list.
func (s *Store) RemoveDependency(taskID, dependencyID string) bool {
	return s.removeLink(taskID, dependencyID, false)
}

// AddRelatedTask records a related-task link. Duplicate ids are ignored.
func (s *Store) AddRelatedTask(taskID, relatedID string) bool {
	return s.addLink(taskID, relatedID, true)
}

// RemoveRelatedTask drops relatedID from the task's related list.
func (s *Store) RemoveRelatedTask(taskID, relatedID string) bool {
	return s.removeLink(taskID, relatedID, true)
}

func (s *Store) addLink(taskID, otherID string, related bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findLocked(taskID)
	if t == nil {
		return false
	}
	list := &t.Dependencies
	if related {
		list = &t.RelatedTasks
	}
	for _, id := range *list {
		if id == otherID {
			return true
		}
	}
	*list = append(*list, otherID)
	t.UpdatedAt = time.Now().UTC()
	s.persistTasksLocked()
	s.publish(activity.TypeLinkChanged, taskID, fmt.Sprintf("link added on %q", t.Title))
	return true
}

func (s *Store) removeLink(taskID, otherID string, related bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findLocked(taskID)
	if t == nil {
		return false
	}
	list := &t.Dependencies
	if related {
		list = &t.RelatedTasks
	}
	kept := (*list)[:0]
	found := false
	for _, id := range *list {
		if id == otherID {
			found = true
			continue
		}
		kept = append(kept, id)
	}
	if !found {
		return false
	}
	*list = kept
	t.UpdatedAt = time.Now().UTC()
	s.persistTasksLocked()
	s.publish(activity.TypeLinkChanged, taskID, fmt.Sprintf("link removed on %q", t.Title))
	return true
}

// --- totals ---

// TotalTimeSpent returns the task's cached total in minutes, or 0 when the
// task is absent.
func (s *Store) TotalTimeSpent(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t := s.findLocked(id); t != nil {
		return t.TotalTimeSpent
	}
	return 0
}

// --- internals ---

// findLocked returns the stored task with the given id. Callers hold s.mu.
func (s *Store) findLocked(id string) *Task {
	for _, t := range s.tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// persistTasksLocked writes the collection through the storage wrapper.
// Callers hold s.mu.
func (s *Store) persistTasksLocked() {
	s.storage.Set(keyTasks, s.tasks)
}

// publish runs with s.mu held; feed handlers must not call back into the
// store.
func (s *Store) publish(typ activity.Type, taskID, summary string) {
	if s.feed == nil {
		return
	}
	actor := ""
	if s.session != nil {
		if u := s.session.Current(); u != nil {
			actor = u.Name
		}
	}
	s.feed.Publish(&activity.Event{
		Type:    typ,
		TaskID:  taskID,
		Actor:   actor,
		Summary: summary,
	})
}
