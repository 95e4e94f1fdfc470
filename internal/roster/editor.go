package roster

import "fmt"

// ActiveEdit is the single in-progress row edit: the row being edited and
// its draft values.
type ActiveEdit struct {
	Seq   int `json:"seq"`
	Draft Row `json:"draft"`
}

// Editor holds at most one active edit. Beginning a new edit discards
// whatever draft was in progress.
type Editor struct {
	active *ActiveEdit
}

// Begin starts editing row. It reports whether an unsaved draft for
// another row was discarded.
func (e *Editor) Begin(row Row) (discarded bool) {
	discarded = e.active != nil && e.active.Seq != row.Seq
	e.active = &ActiveEdit{Seq: row.Seq, Draft: row}
	return discarded
}

// Active returns the current edit, if any.
func (e *Editor) Active() (ActiveEdit, bool) {
	if e.active == nil {
		return ActiveEdit{}, false
	}
	return *e.active, true
}

// Cancel discards the current edit.
func (e *Editor) Cancel() {
	e.active = nil
}

// Forget discards the current edit only if it targets seq.
func (e *Editor) Forget(seq int) {
	if e.active != nil && e.active.Seq == seq {
		e.active = nil
	}
}

// Set updates one draft field by its JSON name. Derived fields (seq,
// campusId, courseId, courseShortCode) cannot be set.
func (e *Editor) Set(field, value string) error {
	if e.active == nil {
		return ErrNoActiveEdit
	}
	ptr := editableField(&e.active.Draft, field)
	if ptr == nil {
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	*ptr = value
	return nil
}

// Apply sets several draft fields. Nothing is changed if any field name
// is rejected.
func (e *Editor) Apply(changes map[string]string) error {
	if e.active == nil {
		return ErrNoActiveEdit
	}
	draft := e.active.Draft
	for field, value := range changes {
		ptr := editableField(&draft, field)
		if ptr == nil {
			return fmt.Errorf("%w: %q", ErrUnknownField, field)
		}
		*ptr = value
	}
	e.active.Draft = draft
	return nil
}

// Save writes the draft over the row with the same sequence number, then
// re-resolves campus and course from the edited text. The edit ends
// whether or not the row still exists.
func (e *Editor) Save(rows []Row, n *Normalizer) (Row, error) {
	if e.active == nil {
		return Row{}, ErrNoActiveEdit
	}
	edit := *e.active
	e.active = nil

	for i := range rows {
		if rows[i].Seq != edit.Seq {
			continue
		}
		draft := edit.Draft
		draft.Seq = edit.Seq
		rows[i] = n.Resolve(draft)
		return rows[i], nil
	}
	return Row{}, fmt.Errorf("%w: %d", ErrRowNotFound, edit.Seq)
}

func editableField(r *Row, field string) *string {
	switch field {
	case "fullname":
		return &r.FullName
	case "email":
		return &r.Email
	case "registrationNumber":
		return &r.RegistrationNumber
	case "gender":
		return &r.Gender
	case "course":
		return &r.Course
	case "yearOfEnrollment":
		return &r.YearOfEnrollment
	case "campus":
		return &r.Campus
	case "school":
		return &r.School
	case "department":
		return &r.Department
	case "age":
		return &r.Age
	case "phoneNumber":
		return &r.PhoneNumber
	case "intakePeriod":
		return &r.IntakePeriod
	default:
		return nil
	}
}
