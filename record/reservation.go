package record

import (
	"strconv"
	"strings"
	"time"

	"github.com/warp/booking-engine/booking"
)

// Reservation columns in canonical order.
const (
	FieldID        Field = "id"
	FieldDate      Field = "date"
	FieldTime      Field = "time"
	FieldName      Field = "name"
	FieldContact   Field = "contact"
	FieldAnonymous Field = "anonymous"
	FieldCategory  Field = "category"
	FieldNote      Field = "note"
	FieldCreatedAt Field = "created_at"
	FieldReason    Field = "reason"
)

// TimestampLayout is how created_at is written.
const TimestampLayout = "2006-01-02 15:04:05"

// readLayouts are tried in order after TimestampLayout. The slash forms are
// what spreadsheet applications write when they re-save a file.
var readLayouts = []string{
	"2006-01-02 15:04",
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
	"2006/1/2",
	"2006-01-02",
}

const (
	anonymousYes = "はい"
	anonymousNo  = "いいえ"
)

// ReservationSchema is the reservation file layout.
var ReservationSchema = NewSchema(
	[]Field{FieldID, FieldDate, FieldTime, FieldName, FieldContact, FieldAnonymous, FieldCategory, FieldNote, FieldCreatedAt},
	map[Field]string{
		FieldID:        "ID",
		FieldDate:      "日付",
		FieldTime:      "時間",
		FieldName:      "企業名",
		FieldContact:   "連絡先",
		FieldAnonymous: "匿名",
		FieldCategory:  "カテゴリ",
		FieldNote:      "備考",
		FieldCreatedAt: "作成日時",
	},
	map[string]Field{
		"company_name": FieldName,
		"company":      FieldName,
		"email":        FieldContact,
		"createdat":    FieldCreatedAt,
	},
)

// NewReservationCodec encodes timestamps in loc. A row without a positive
// integer id is dropped.
func NewReservationCodec(loc *time.Location) Codec[booking.Reservation] {
	if loc == nil {
		loc = time.UTC
	}
	return Codec[booking.Reservation]{
		Schema: ReservationSchema,
		toRow: func(r booking.Reservation) Row {
			return Row{
				FieldID:        strconv.Itoa(r.ID),
				FieldDate:      r.Date,
				FieldTime:      r.Time,
				FieldName:      r.CompanyName,
				FieldContact:   r.Contact,
				FieldAnonymous: formatAnonymous(r.Anonymous),
				FieldCategory:  r.Category,
				FieldNote:      r.Note,
				FieldCreatedAt: encodeTimestamp(r.CreatedAt, r.CreatedAtText, loc),
			}
		},
		fromRow: func(row Row) (booking.Reservation, bool) {
			id, err := strconv.Atoi(strings.TrimSpace(row[FieldID]))
			if err != nil || id <= 0 {
				return booking.Reservation{}, false
			}
			createdAt, createdAtText := decodeTimestamp(row[FieldCreatedAt], loc)
			return booking.Reservation{
				ID:          id,
				Date:        strings.TrimSpace(row[FieldDate]),
				Time:        row[FieldTime],
				CompanyName: row[FieldName],
				Contact:     row[FieldContact],
				Anonymous:   ParseAnonymous(row[FieldAnonymous]),
				Category:    row[FieldCategory],
				Note:        row[FieldNote],
				CreatedAt:   createdAt,

				CreatedAtText: createdAtText,
			}, true
		},
	}
}

func formatAnonymous(b bool) string {
	if b {
		return anonymousYes
	}
	return anonymousNo
}

// ParseAnonymous accepts the localized yes/no and the usual boolean
// spellings. Anything else is false.
func ParseAnonymous(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case anonymousYes, "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

// FormatTimestamp writes t in loc. The zero time encodes as "".
func FormatTimestamp(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(TimestampLayout)
}

// ParseTimestamp reads a timestamp written by FormatTimestamp, a spreadsheet
// re-save, or an RFC 3339 value. Unparseable input yields the zero time.
func ParseTimestamp(s string, loc *time.Location) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.ParseInLocation(TimestampLayout, s, loc); err == nil {
		return t
	}
	for _, layout := range readLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc)
	}
	return time.Time{}
}

// decodeTimestamp returns the parsed time, or the trimmed cell when it does
// not parse.
func decodeTimestamp(cell string, loc *time.Location) (time.Time, string) {
	cell = strings.TrimSpace(cell)
	t := ParseTimestamp(cell, loc)
	if t.IsZero() {
		return t, cell
	}
	return t, ""
}

// encodeTimestamp writes t, or text when t was never parsed.
func encodeTimestamp(t time.Time, text string, loc *time.Location) string {
	if t.IsZero() {
		return text
	}
	return FormatTimestamp(t, loc)
}
