package canvas

import "encoding/json"

// Course is a Canvas course as returned by the course list endpoint
type Course struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Plannable is the entity a planner item points at
type Plannable struct {
	ID    int64   `json:"id"`
	Title string  `json:"title"`
	DueAt *string `json:"due_at"`
}

// PlannerOverride is a student-level completion override on a planner item
type PlannerOverride struct {
	MarkedComplete bool `json:"marked_complete"`
}

// Submissions reflects the planner item's submission state. The API
// returns either the boolean false (no submission state) or an object;
// Present distinguishes the two.
type Submissions struct {
	Present   bool
	Submitted bool
}

func (s *Submissions) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		s.Present = false
		s.Submitted = false
		return nil
	}
	var obj struct {
		Submitted bool `json:"submitted"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	s.Present = true
	s.Submitted = obj.Submitted
	return nil
}

// PlannerItem is a Canvas planner entry surfaced to a student
type PlannerItem struct {
	CourseID        int64            `json:"course_id"`
	PlannableID     int64            `json:"plannable_id"`
	PlannableType   string           `json:"plannable_type"`
	Plannable       Plannable        `json:"plannable"`
	PlannerOverride *PlannerOverride `json:"planner_override"`
	Submissions     Submissions      `json:"submissions"`
	HTMLURL         string           `json:"html_url"`
}

// Unfinished reports whether the item still needs the student's
// attention: no completion override, an unsubmitted submissions record,
// and an assignment plannable. The quiz/assessment distinction is
// derived later from content, not from the plannable type.
func (p *PlannerItem) Unfinished() bool {
	if p.PlannerOverride != nil && p.PlannerOverride.MarkedComplete {
		return false
	}
	if !p.Submissions.Present || p.Submissions.Submitted {
		return false
	}
	return p.PlannableType == "assignment"
}

// Assignment is the full assignment detail, which carries the complete
// HTML description absent from planner/list views
type Assignment struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	DueAt       *string `json:"due_at"`
	HTMLURL     string  `json:"html_url"`
}
