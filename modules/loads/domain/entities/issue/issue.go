package issue

// Code identifies one class of analysis finding. Codes are wire-stable.
type Code string

const (
	SheetUnreadable   Code = "SHEET_UNREADABLE"
	RateLimited       Code = "RATE_LIMITED"
	MissingColumn     Code = "MISSING_COLUMN"
	AmbiguousHeader   Code = "AMBIGUOUS_HEADER"
	EmptyRequiredCell Code = "EMPTY_REQUIRED_CELL"
	DuplicateID       Code = "DUPLICATE_ID"
	BadDateFormat     Code = "BAD_DATE_FORMAT"
	TimezoneMissing   Code = "TIMEZONE_MISSING"
	NonISOOutput      Code = "NON_ISO_OUTPUT"
	StatusVocab       Code = "STATUS_VOCAB"
	AssumedTimezone   Code = "ASSUMED_TIMEZONE"
	SuggestionFailed  Code = "SUGGESTION_FAILED"
	HeaderSuggestion  Code = "HEADER_SUGGESTION"
)

type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warn"
)

// Issue is one finding produced by an analysis pass. Rows lists the affected
// 1-based sheet rows, sorted and distinct; it is empty for sheet-level
// findings. Column and Suggestion are optional.
type Issue struct {
	Code       Code     `json:"code"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	Rows       []int    `json:"rows,omitempty"`
	Column     string   `json:"column,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
}

func New(code Code, severity Severity, message string) Issue {
	return Issue{Code: code, Severity: severity, Message: message}
}

func (i Issue) WithRows(rows ...int) Issue {
	i.Rows = append(i.Rows, rows...)
	return i
}

func (i Issue) WithColumn(column string) Issue {
	i.Column = column
	return i
}

func (i Issue) WithSuggestion(suggestion string) Issue {
	i.Suggestion = suggestion
	return i
}

// List accumulates issues preserving append order.
type List struct {
	issues []Issue
}

func (l *List) Add(issues ...Issue) {
	l.issues = append(l.issues, issues...)
}

func (l *List) Merge(other *List) {
	if other == nil {
		return
	}
	l.issues = append(l.issues, other.issues...)
}

// Issues returns the accumulated issues in insertion order, never nil.
func (l *List) Issues() []Issue {
	if l.issues == nil {
		return []Issue{}
	}
	return l.issues
}

func (l *List) Len() int {
	return len(l.issues)
}

// HasErrors reports whether any accumulated issue is error severity.
func (l *List) HasErrors() bool {
	for _, i := range l.issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// CountByCode returns how many accumulated issues carry the code.
func (l *List) CountByCode(code Code) int {
	n := 0
	for _, i := range l.issues {
		if i.Code == code {
			n++
		}
	}
	return n
}
