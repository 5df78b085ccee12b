package load

import (
	"encoding/json"
	"errors"
)

var (
	ErrLoadNotFound = errors.New("load not found")
	ErrEmptyLoadID  = errors.New("empty load id")
)

type loadRecord struct {
	loadID          string
	fromAddress     string
	fromAppointment string
	toAddress       string
	toAppointment   string
	status          string
	driverName      string
	driverPhone     string
	unitNumber      string
	broker          string
	sourceRow       int
}

// Load is one logistics load built from a sheet row. Appointment values hold
// ISO-8601 UTC text when normalization succeeded, otherwise the original cell
// text.
type Load interface {
	LoadID() string
	FromAddress() string
	FromAppointment() string
	ToAddress() string
	ToAppointment() string
	Status() string
	DriverName() string
	DriverPhone() string
	UnitNumber() string
	Broker() string
	// SourceRow is the 1-based spreadsheet row the record was built from.
	SourceRow() int

	Value(f Field) string
}

func New(loadID string, opts ...Option) Load {
	l := &loadRecord{
		loadID: loadID,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type Option func(*loadRecord)

func WithFromAddress(v string) Option {
	return func(l *loadRecord) { l.fromAddress = v }
}

func WithFromAppointment(v string) Option {
	return func(l *loadRecord) { l.fromAppointment = v }
}

func WithToAddress(v string) Option {
	return func(l *loadRecord) { l.toAddress = v }
}

func WithToAppointment(v string) Option {
	return func(l *loadRecord) { l.toAppointment = v }
}

func WithStatus(v string) Option {
	return func(l *loadRecord) { l.status = v }
}

func WithDriverName(v string) Option {
	return func(l *loadRecord) { l.driverName = v }
}

func WithDriverPhone(v string) Option {
	return func(l *loadRecord) { l.driverPhone = v }
}

func WithUnitNumber(v string) Option {
	return func(l *loadRecord) { l.unitNumber = v }
}

func WithBroker(v string) Option {
	return func(l *loadRecord) { l.broker = v }
}

func WithSourceRow(row int) Option {
	return func(l *loadRecord) { l.sourceRow = row }
}

func WithValue(f Field, v string) Option {
	return func(l *loadRecord) {
		switch f {
		case FieldLoadID:
			l.loadID = v
		case FieldFromAddress:
			l.fromAddress = v
		case FieldFromAppointment:
			l.fromAppointment = v
		case FieldToAddress:
			l.toAddress = v
		case FieldToAppointment:
			l.toAppointment = v
		case FieldStatus:
			l.status = v
		case FieldDriverName:
			l.driverName = v
		case FieldDriverPhone:
			l.driverPhone = v
		case FieldUnitNumber:
			l.unitNumber = v
		case FieldBroker:
			l.broker = v
		}
	}
}

func (l *loadRecord) LoadID() string          { return l.loadID }
func (l *loadRecord) FromAddress() string     { return l.fromAddress }
func (l *loadRecord) FromAppointment() string { return l.fromAppointment }
func (l *loadRecord) ToAddress() string       { return l.toAddress }
func (l *loadRecord) ToAppointment() string   { return l.toAppointment }
func (l *loadRecord) Status() string          { return l.status }
func (l *loadRecord) DriverName() string      { return l.driverName }
func (l *loadRecord) DriverPhone() string     { return l.driverPhone }
func (l *loadRecord) UnitNumber() string      { return l.unitNumber }
func (l *loadRecord) Broker() string          { return l.broker }
func (l *loadRecord) SourceRow() int          { return l.sourceRow }

// MarshalJSON emits the record keyed by canonical field name, plus the
// 1-based source row.
func (l *loadRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(AllFields())+1)
	for _, f := range AllFields() {
		out[string(f)] = l.Value(f)
	}
	out["sourceRow"] = l.sourceRow
	return json.Marshal(out)
}

func (l *loadRecord) Value(f Field) string {
	switch f {
	case FieldLoadID:
		return l.loadID
	case FieldFromAddress:
		return l.fromAddress
	case FieldFromAppointment:
		return l.fromAppointment
	case FieldToAddress:
		return l.toAddress
	case FieldToAppointment:
		return l.toAppointment
	case FieldStatus:
		return l.status
	case FieldDriverName:
		return l.driverName
	case FieldDriverPhone:
		return l.driverPhone
	case FieldUnitNumber:
		return l.unitNumber
	case FieldBroker:
		return l.broker
	default:
		return ""
	}
}
