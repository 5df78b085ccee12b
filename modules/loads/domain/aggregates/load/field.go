package load

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Field is a canonical load attribute resolved from sheet headers.
type Field string

const (
	FieldLoadID          Field = "loadId"
	FieldFromAddress     Field = "fromAddress"
	FieldFromAppointment Field = "fromAppointmentDateTimeUTC"
	FieldToAddress       Field = "toAddress"
	FieldToAppointment   Field = "toAppointmentDateTimeUTC"
	FieldStatus          Field = "status"
	FieldDriverName      Field = "driverName"
	FieldDriverPhone     Field = "driverPhone"
	FieldUnitNumber      Field = "unitNumber"
	FieldBroker          Field = "broker"
)

// AllFields returns every canonical field in declared order. The order is
// part of the contract: candidate lists and issue ordering follow it.
func AllFields() []Field {
	return []Field{
		FieldLoadID,
		FieldFromAddress,
		FieldFromAppointment,
		FieldToAddress,
		FieldToAppointment,
		FieldStatus,
		FieldDriverName,
		FieldDriverPhone,
		FieldUnitNumber,
		FieldBroker,
	}
}

// RequiredFields returns the fields every sheet must provide a column for.
// Driver phone is the only optional field.
func RequiredFields() []Field {
	fields := make([]Field, 0, len(AllFields())-1)
	for _, f := range AllFields() {
		if f != FieldDriverPhone {
			fields = append(fields, f)
		}
	}
	return fields
}

// TimestampFields returns the appointment fields that carry normalized
// date/time values.
func TimestampFields() []Field {
	return []Field{FieldFromAppointment, FieldToAppointment}
}

func (f Field) Required() bool {
	return f != FieldDriverPhone
}

func (f Field) IsTimestamp() bool {
	return f == FieldFromAppointment || f == FieldToAppointment
}

var synonyms = map[Field][]string{
	FieldLoadID: {
		"vrid", "load", "load id", "load number", "trip", "trip id",
		"shipment", "shipment id", "pro", "pro number", "reference", "ref",
		"order id",
	},
	FieldFromAddress: {
		"origin", "origin address", "pickup address", "pickup location",
		"pu location", "from", "from address", "shipper", "shipper address",
		"address",
	},
	FieldFromAppointment: {
		"pu", "pickup", "pickup appointment", "pickup appt", "pu appt",
		"pickup date time", "origin appointment", "pu datetime", "appt",
		"appointment",
	},
	FieldToAddress: {
		"destination", "destination address", "delivery address",
		"delivery location", "del location", "to", "to address", "consignee",
		"receiver address", "address",
	},
	FieldToAppointment: {
		"del", "delivery", "delivery appointment", "delivery appt", "del appt",
		"delivery date time", "destination appointment", "del datetime",
		"drop", "dropoff", "appt", "appointment",
	},
	FieldStatus: {
		"load status", "state", "stage", "trip status",
	},
	FieldDriverName: {
		"driver", "driver name", "operator", "driver 1",
	},
	FieldDriverPhone: {
		"phone", "driver phone", "driver cell", "phone number",
		"driver contact", "contact", "cell", "mobile", "driver",
	},
	FieldUnitNumber: {
		"unit", "unit number", "truck", "truck number", "tractor",
		"tractor number", "vehicle", "unit id",
	},
	FieldBroker: {
		"broker name", "brokerage", "customer", "client", "customer name",
	},
}

// splitDateSynonyms and splitTimeSynonyms name the date-only and time-only
// source columns of a split timestamp layout. They are matched independently
// of the timestamp field's own synonyms.
var splitDateSynonyms = map[Field][]string{
	FieldFromAppointment: {"pu date", "pickup date", "origin date", "from date"},
	FieldToAppointment:   {"del date", "delivery date", "destination date", "to date", "drop date"},
}

var splitTimeSynonyms = map[Field][]string{
	FieldFromAppointment: {"pu time", "pickup time", "origin time", "from time"},
	FieldToAppointment:   {"del time", "delivery time", "destination time", "to time", "drop time"},
}

// Synonyms returns the canonical-form synonym list of the field.
func Synonyms(f Field) []string {
	return synonyms[f]
}

func SplitDateSynonyms(f Field) []string {
	return splitDateSynonyms[f]
}

func SplitTimeSynonyms(f Field) []string {
	return splitTimeSynonyms[f]
}

// SynonymOwners returns, in declared field order, every field whose synonym
// set contains the canonical header form.
func SynonymOwners(canonical string) []Field {
	var owners []Field
	for _, f := range AllFields() {
		for _, s := range synonyms[f] {
			if s == canonical {
				owners = append(owners, f)
				break
			}
		}
	}
	return owners
}

// FieldNamed matches a header against canonical field names, first exactly,
// then case-insensitively.
func FieldNamed(header string) (Field, bool) {
	for _, f := range AllFields() {
		if header == string(f) {
			return f, true
		}
	}
	lower := strings.ToLower(header)
	for _, f := range AllFields() {
		if lower == strings.ToLower(string(f)) {
			return f, true
		}
	}
	return "", false
}

// Canonicalize lowercases the header and collapses every run of
// non-alphanumeric characters into a single space. Input is NFKC-folded
// first so full-width characters and non-breaking spaces from spreadsheet
// exports compare equal to their plain ASCII forms.
func Canonicalize(header string) string {
	header = norm.NFKC.String(header)
	var b strings.Builder
	b.Grow(len(header))
	pendingSpace := false
	for _, r := range strings.ToLower(header) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		} else {
			pendingSpace = true
		}
	}
	return b.String()
}
