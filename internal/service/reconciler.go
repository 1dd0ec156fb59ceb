package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/schedly/schedly/internal/canvas"
	"github.com/schedly/schedly/internal/models"
	"github.com/schedly/schedly/internal/notion"
	"github.com/schedly/schedly/internal/openrouter"
)

// Property names of the tracked calendar database.
const (
	propName        = "Name"
	propID          = "Id"
	propDueDate     = "Due Date"
	propDone        = "Done"
	propType        = "Type"
	propSubject     = "Subject"
	propDescription = "Description"

	subjectCourseIDProp = "Canvas ID"

	descriptionLinkText = "Open in Canvas"
)

// CanvasClient is the slice of the Canvas gateway the reconciler uses
type CanvasClient interface {
	BaseURL(ctx context.Context, userID string) (string, error)
	ActiveCourses(ctx context.Context, userID string) ([]canvas.Course, error)
	PlannerItems(ctx context.Context, userID string) ([]canvas.PlannerItem, error)
	AssignmentDetail(ctx context.Context, userID string, courseID, assignmentID int64) (*canvas.Assignment, error)
}

// NotionClient is the slice of the Notion gateway the reconciler uses
type NotionClient interface {
	GetDatabase(ctx context.Context, token, databaseID string) (*notion.Database, error)
	QueryAllPages(ctx context.Context, token, databaseID string, filter map[string]interface{}) ([]notion.Page, error)
	CreatePage(ctx context.Context, token, databaseID string, properties map[string]interface{}) (*notion.Page, error)
	UpdatePage(ctx context.Context, token, pageID string, properties map[string]interface{}) error
}

// Normalizer turns raw assignment data into structured fields
type Normalizer interface {
	NormalizeAssignment(ctx context.Context, courseName, rawName, rawDescriptionHTML string, dueAt *string) (*openrouter.NormalizedAssignment, error)
}

// TokenProvider wraps Notion calls with the refresh-and-retry contract
type TokenProvider interface {
	WithValidToken(ctx context.Context, userID string, fn func(token string) error) error
}

// NotionConnectionSource resolves a user's sync configuration
type NotionConnectionSource interface {
	GetByUserID(ctx context.Context, userID string) (*models.NotionConnection, error)
}

// Reconciler diffs the currently-unfinished Canvas assignment set
// against the user's tracked Notion database, creating, updating and
// completing records with minimal writes.
type Reconciler struct {
	conns      NotionConnectionSource
	tokens     TokenProvider
	canvas     CanvasClient
	notion     NotionClient
	normalizer Normalizer
}

func NewReconciler(
	conns NotionConnectionSource,
	tokens TokenProvider,
	canvasClient CanvasClient,
	notionClient NotionClient,
	normalizer Normalizer,
) *Reconciler {
	return &Reconciler{
		conns:      conns,
		tokens:     tokens,
		canvas:     canvasClient,
		notion:     notionClient,
		normalizer: normalizer,
	}
}

// SyncUser runs one full reconciliation for the user and returns the
// number of write operations performed (creates + updates + done-flips).
// Any item failure aborts the rest of the run; progress already written
// is not rolled back.
func (r *Reconciler) SyncUser(ctx context.Context, userID string) (int, error) {
	conn, err := r.conns.GetByUserID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if conn.CalendarDatabaseID == nil || *conn.CalendarDatabaseID == "" {
		return 0, fmt.Errorf("no calendar database configured for user %s", userID)
	}
	databaseID := *conn.CalendarDatabaseID

	synced := 0
	err = r.tokens.WithValidToken(ctx, userID, func(token string) error {
		n, runErr := r.run(ctx, userID, token, databaseID)
		synced = n
		return runErr
	})
	if err != nil {
		return 0, err
	}

	log.Printf("Reconciliation for user %s performed %d write(s)", userID, synced)
	return synced, nil
}

func (r *Reconciler) run(ctx context.Context, userID, token, databaseID string) (int, error) {
	// Load phase
	courses, err := r.canvas.ActiveCourses(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch courses: %w", err)
	}
	courseNames := make(map[int64]string, len(courses))
	for _, c := range courses {
		courseNames[c.ID] = c.Name
	}

	items, err := r.canvas.PlannerItems(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch planner items: %w", err)
	}

	canvasBaseURL, err := r.canvas.BaseURL(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve Canvas base URL: %w", err)
	}

	subjectsDBID, err := r.subjectsDatabaseID(ctx, token, databaseID)
	if err != nil {
		return 0, err
	}

	// Filter phase: the unfinished set is ground truth for what should
	// be open in Notion by the end of the run.
	var unfinished []canvas.PlannerItem
	unfinishedIDs := make(map[int64]bool)
	for _, item := range items {
		if item.Unfinished() {
			unfinished = append(unfinished, item)
			unfinishedIDs[item.Plannable.ID] = true
		}
	}

	writes := 0
	subjectCache := make(map[int64]string)

	// Upsert phase
	for _, item := range unfinished {
		detail, err := r.canvas.AssignmentDetail(ctx, userID, item.CourseID, item.Plannable.ID)
		if err != nil {
			return writes, fmt.Errorf("failed to fetch assignment %d: %w", item.Plannable.ID, err)
		}

		existing, err := r.notion.QueryAllPages(ctx, token, databaseID, map[string]interface{}{
			"property": propID,
			"number":   map[string]interface{}{"equals": item.Plannable.ID},
		})
		if err != nil {
			return writes, fmt.Errorf("failed to look up record %d: %w", item.Plannable.ID, err)
		}

		normalized, err := r.normalizer.NormalizeAssignment(ctx, courseNames[item.CourseID], detail.Name, detail.Description, detail.DueAt)
		if err != nil {
			return writes, fmt.Errorf("failed to normalize assignment %d: %w", item.Plannable.ID, err)
		}

		subjectPageID, err := r.resolveSubject(ctx, token, subjectsDBID, item.CourseID, subjectCache)
		if err != nil {
			return writes, err
		}

		dueAt := ""
		if detail.DueAt != nil {
			dueAt = *detail.DueAt
		}
		link := detail.HTMLURL
		if link == "" {
			link = item.HTMLURL
		}
		// planner items carry relative html paths
		if strings.HasPrefix(link, "/") {
			link = canvasBaseURL + link
		}

		if len(existing) == 0 {
			props := map[string]interface{}{
				propName:        notion.TitleProp(normalized.Name),
				propID:          notion.NumberProp(float64(item.Plannable.ID)),
				propDone:        notion.CheckboxProp(false),
				propType:        notion.SelectProp(normalized.Type),
				propDueDate:     notion.DateProp(dueAt),
				propDescription: notion.RichTextLinkProp(descriptionLinkText, link),
			}
			if subjectPageID != "" {
				props[propSubject] = notion.RelationProp(subjectPageID)
			}
			if _, err := r.notion.CreatePage(ctx, token, databaseID, props); err != nil {
				return writes, fmt.Errorf("failed to create record %d: %w", item.Plannable.ID, err)
			}
			writes++
			continue
		}

		page := existing[0]
		updates := map[string]interface{}{}

		if page.TitleText(propName) != normalized.Name {
			updates[propName] = notion.TitleProp(normalized.Name)
		}
		if !sameInstant(page.DateStart(propDueDate), dueAt) {
			updates[propDueDate] = notion.DateProp(dueAt)
		}
		if page.SelectName(propType) != normalized.Type {
			updates[propType] = notion.SelectProp(normalized.Type)
		}
		// a resolved subject overwrites a stale relation, but an
		// unresolvable course leaves any existing relation alone: the
		// user may have linked it by hand
		if subjectPageID != "" && !hasRelation(page.RelationIDs(propSubject), subjectPageID) {
			updates[propSubject] = notion.RelationProp(subjectPageID)
		}
		if page.RichTextLink(propDescription) != link {
			updates[propDescription] = notion.RichTextLinkProp(descriptionLinkText, link)
		}
		if page.Checkbox(propDone) {
			// remote still lists it as unfinished, so done mirrors back to false
			updates[propDone] = notion.CheckboxProp(false)
		}

		if len(updates) > 0 {
			if err := r.notion.UpdatePage(ctx, token, page.ID, updates); err != nil {
				return writes, fmt.Errorf("failed to update record %d: %w", item.Plannable.ID, err)
			}
			writes++
		}
	}

	// Completion phase: open records absent from the unfinished set are
	// flipped done. This is the only path that marks items complete.
	open, err := r.notion.QueryAllPages(ctx, token, databaseID, map[string]interface{}{
		"property": propDone,
		"checkbox": map[string]interface{}{"equals": false},
	})
	if err != nil {
		return writes, fmt.Errorf("failed to query open records: %w", err)
	}
	for i := range open {
		page := &open[i]
		id, ok := page.Number(propID)
		if !ok {
			continue // manually created row, not tracked
		}
		if unfinishedIDs[int64(id)] {
			continue
		}
		if err := r.notion.UpdatePage(ctx, token, page.ID, map[string]interface{}{
			propDone: notion.CheckboxProp(true),
		}); err != nil {
			return writes, fmt.Errorf("failed to complete record %d: %w", int64(id), err)
		}
		writes++
	}

	return writes, nil
}

// subjectsDatabaseID reads the Subject relation's target database off
// the tracked database schema. A tracked database without it is a
// configuration error.
func (r *Reconciler) subjectsDatabaseID(ctx context.Context, token, databaseID string) (string, error) {
	db, err := r.notion.GetDatabase(ctx, token, databaseID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch calendar database: %w", err)
	}
	prop, ok := db.Properties[propSubject].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf(`calendar database is missing the %q relation property`, propSubject)
	}
	rel, ok := prop["relation"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf(`calendar database property %q is not a relation`, propSubject)
	}
	id, _ := rel["database_id"].(string)
	if id == "" {
		return "", fmt.Errorf(`calendar database property %q has no target database`, propSubject)
	}
	return id, nil
}

// resolveSubject finds the Subject row whose course ID property matches
// the Canvas course, first match wins. No match is not fatal; the
// relation is simply omitted.
func (r *Reconciler) resolveSubject(ctx context.Context, token, subjectsDBID string, courseID int64, cache map[int64]string) (string, error) {
	if id, ok := cache[courseID]; ok {
		return id, nil
	}

	matches, err := r.notion.QueryAllPages(ctx, token, subjectsDBID, map[string]interface{}{
		"property": subjectCourseIDProp,
		"number":   map[string]interface{}{"equals": courseID},
	})
	if err != nil {
		return "", fmt.Errorf("failed to resolve subject for course %d: %w", courseID, err)
	}

	id := ""
	if len(matches) > 0 {
		id = matches[0].ID
	}
	cache[courseID] = id
	return id, nil
}

// sameInstant compares two remote date strings as instants when both
// parse, so provider-side reformatting does not register as drift.
func sameInstant(a, b string) bool {
	if a == b {
		return true
	}
	ta, errA := time.Parse(time.RFC3339, a)
	tb, errB := time.Parse(time.RFC3339, b)
	if errA != nil || errB != nil {
		return false
	}
	return ta.Equal(tb)
}

func hasRelation(ids []string, want string) bool {
	for _, id := range ids {
		if notion.Undash(id) == notion.Undash(want) {
			return true
		}
	}
	return false
}
