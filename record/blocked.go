package record

import (
	"strings"
	"time"

	"github.com/warp/booking-engine/booking"
)

// BlockedDateSchema is the blocked-date file layout. Older files carry only
// a date column; the missing columns decode as empty.
var BlockedDateSchema = NewSchema(
	[]Field{FieldDate, FieldReason, FieldCreatedAt},
	map[Field]string{
		FieldDate:      "日付",
		FieldReason:    "理由",
		FieldCreatedAt: "作成日時",
	},
	map[string]Field{"blocked_date": FieldDate},
)

// NewBlockedDateCodec drops rows with an empty date.
func NewBlockedDateCodec(loc *time.Location) Codec[booking.BlockedDate] {
	if loc == nil {
		loc = time.UTC
	}
	return Codec[booking.BlockedDate]{
		Schema: BlockedDateSchema,
		toRow: func(b booking.BlockedDate) Row {
			return Row{
				FieldDate:      b.Date,
				FieldReason:    b.Reason,
				FieldCreatedAt: encodeTimestamp(b.CreatedAt, b.CreatedAtText, loc),
			}
		},
		fromRow: func(row Row) (booking.BlockedDate, bool) {
			date := strings.TrimSpace(row[FieldDate])
			if date == "" {
				return booking.BlockedDate{}, false
			}
			createdAt, createdAtText := decodeTimestamp(row[FieldCreatedAt], loc)
			return booking.BlockedDate{
				Date:          date,
				Reason:        row[FieldReason],
				CreatedAt:     createdAt,
				CreatedAtText: createdAtText,
			}, true
		},
	}
}
