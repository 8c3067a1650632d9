package date

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
)

// ScanDate lets pgx scan a DATE column into a Date. Scan into **Date for
// nullable columns.
func (d *Date) ScanDate(v pgtype.Date) error {
	if !v.Valid {
		*d = Date{}
		return nil
	}
	if v.InfinityModifier != pgtype.Finite {
		return fmt.Errorf("cannot scan infinite date into Date")
	}
	*d = Of(v.Time)
	return nil
}

// DateValue lets pgx encode a Date as a DATE parameter.
func (d Date) DateValue() (pgtype.Date, error) {
	if d.IsZero() {
		return pgtype.Date{}, nil
	}
	return pgtype.Date{Time: d.Time(), Valid: true}, nil
}
