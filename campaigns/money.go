package campaigns

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/jrsteele09/swishview/internal/errors"
	"github.com/pkg/errors"
)

// Money is an amount in cents.
type Money int64

func Dollars(d int64) Money {
	return Money(d * 100)
}

// ParseMoney accepts "50", "50.5" and "50.50". More than two decimals and negative
// amounts are rejected.
func ParseMoney(v string) (Money, error) {
	v = strings.TrimSpace(v)
	if v == "" || strings.Trim(v, "0123456789.") != "" {
		return 0, errors.Wrapf(apperrors.ErrInvalidField, "invalid amount %q", v)
	}
	whole, frac, hasFrac := strings.Cut(v, ".")
	if whole == "" || (hasFrac && (len(frac) == 0 || len(frac) > 2)) {
		return 0, errors.Wrapf(apperrors.ErrInvalidField, "invalid amount %q", v)
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(apperrors.ErrInvalidField, "invalid amount %q", v)
	}
	var cents int64
	if hasFrac {
		if len(frac) == 1 {
			frac += "0"
		}
		cents, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, errors.Wrapf(apperrors.ErrInvalidField, "invalid amount %q", v)
		}
	}
	return Money(units*100 + cents), nil
}

func (m Money) Cents() int64 {
	return int64(m)
}

func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON takes either a JSON string or a JSON number.
func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
	}
	parsed, err := ParseMoney(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
