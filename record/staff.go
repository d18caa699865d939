package record

import (
	"strings"

	"github.com/warp/booking-engine/booking"
)

// FieldEmail is the address column of the staff mail list.
const FieldEmail Field = "email"

// StaffSchema is the staff mail list layout: name, then address.
var StaffSchema = NewSchema(
	[]Field{FieldName, FieldEmail},
	map[Field]string{
		FieldName:  "名前",
		FieldEmail: "メールアドレス",
	},
	map[string]Field{
		"氏名":     FieldName,
		"mail":   FieldEmail,
		"e-mail": FieldEmail,
		"メール":    FieldEmail,
	},
)

// NewStaffCodec drops rows with an empty address. Malformed addresses are
// kept so an edit never loses them; readers filter.
func NewStaffCodec() Codec[booking.StaffContact] {
	return Codec[booking.StaffContact]{
		Schema: StaffSchema,
		toRow: func(c booking.StaffContact) Row {
			return Row{FieldName: c.Name, FieldEmail: c.Email}
		},
		fromRow: func(row Row) (booking.StaffContact, bool) {
			email := strings.TrimSpace(row[FieldEmail])
			if email == "" {
				return booking.StaffContact{}, false
			}
			return booking.StaffContact{Name: strings.TrimSpace(row[FieldName]), Email: email}, true
		},
	}
}
