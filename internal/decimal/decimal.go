// Package decimal implements the Decimal Normalizer: parsing exchange and
// chain numeric values (including scientific notation) into fixed-point
// representations safe for OHLCV arithmetic and wei-denominated amounts.
//
// The teacher repo avoids this problem entirely by keeping prices as int64
// paise; this domain's external feeds emit arbitrary-precision decimal
// strings (sometimes in scientific notation), so this package leans on
// github.com/shopspring/decimal rather than hand-rolling fixed-point math.
package decimal

import (
	"encoding/json"
	"log"
	"math/big"

	"github.com/shopspring/decimal"
)

// Dec8 is a fixed-point value rounded to 8 fractional digits, used for
// candle OHLCV fields and orderbook price/quantity levels.
type Dec8 struct {
	d decimal.Decimal
}

// Dec18 is a fixed-point value rounded to 18 fractional digits, used for
// on-chain wei-denominated order amounts.
type Dec18 struct {
	d decimal.Decimal
}

// Zero8 is the additive identity for Dec8.
var Zero8 = Dec8{d: decimal.Zero}

// Zero18 is the additive identity for Dec18.
var Zero18 = Dec18{d: decimal.Zero}

// NewDec8 normalizes v (a string, float64, int64, or decimal.Decimal) into a
// Dec8. Unparseable input is logged and normalized to zero rather than
// failing the caller — a single bad field must never abort a candle fold.
func NewDec8(v interface{}) Dec8 {
	d, ok := parse(v)
	if !ok {
		log.Printf("[decimal] could not normalize value %#v, using zero", v)
		return Zero8
	}
	return Dec8{d: d.Round(8)}
}

// NewDec18 normalizes v into a Dec18, same failure policy as NewDec8.
func NewDec18(v interface{}) Dec18 {
	d, ok := parse(v)
	if !ok {
		log.Printf("[decimal] could not normalize value %#v, using zero", v)
		return Zero18
	}
	return Dec18{d: d.Round(18)}
}

// WeiToDec18 converts an integer wei amount (18 decimals implied) to Dec18.
func WeiToDec18(wei decimal.Decimal) Dec18 {
	return Dec18{d: wei.Shift(-18).Round(18)}
}

// WeiToDec18FromBigInt converts a *big.Int wei amount, as decoded straight
// off a chain log, to Dec18. A nil input normalizes to zero rather than
// panicking — an absent or malformed on-chain field must never abort event
// application.
func WeiToDec18FromBigInt(wei *big.Int) Dec18 {
	if wei == nil {
		return Zero18
	}
	return WeiToDec18(decimal.NewFromBigInt(wei, 0))
}

func parse(v interface{}) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, true
	case string:
		if t == "" {
			return decimal.Zero, true
		}
		d, err := decimal.NewFromString(t)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	case float64:
		return decimal.NewFromFloat(t), true
	case int64:
		return decimal.NewFromInt(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case decimal.Decimal:
		return t, true
	case Dec8:
		return t.d, true
	case Dec18:
		return t.d, true
	default:
		return decimal.Decimal{}, false
	}
}

func (d Dec8) String() string { return d.d.StringFixed(8) }
func (d Dec18) String() string { return d.d.StringFixed(18) }

func (d Dec8) Float64() float64  { f, _ := d.d.Float64(); return f }
func (d Dec18) Float64() float64 { f, _ := d.d.Float64(); return f }

func (d Dec8) IsZero() bool  { return d.d.IsZero() }
func (d Dec18) IsZero() bool { return d.d.IsZero() }

func (d Dec8) Cmp(other Dec8) int { return d.d.Cmp(other.d) }

func (d Dec8) Add(other Dec8) Dec8 { return Dec8{d: d.d.Add(other.d).Round(8)} }
func (d Dec8) Sub(other Dec8) Dec8 { return Dec8{d: d.d.Sub(other.d).Round(8)} }
func (d Dec8) Max(other Dec8) Dec8 {
	if d.d.Cmp(other.d) >= 0 {
		return d
	}
	return other
}
func (d Dec8) Min(other Dec8) Dec8 {
	if d.d.Cmp(other.d) <= 0 {
		return d
	}
	return other
}

// MulInt64 multiplies by a plain integer scalar, e.g. computing a margin
// band as price * (100 ± 10) / 100.
func (d Dec8) MulInt64(n int64) Dec8 {
	return Dec8{d: d.d.Mul(decimal.NewFromInt(n)).Round(8)}
}

// DivInt64 divides by a plain integer scalar.
func (d Dec8) DivInt64(n int64) Dec8 {
	if n == 0 {
		return d
	}
	return Dec8{d: d.d.Div(decimal.NewFromInt(n)).Round(8)}
}

func (d Dec8) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.d.StringFixed(8))
}

func (d *Dec8) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*d = NewDec8(s)
	return nil
}

func (d Dec18) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.d.StringFixed(18))
}

func (d *Dec18) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*d = NewDec18(s)
	return nil
}

// Value implements driver.Valuer for gorm/database-sql persistence as a
// numeric-compatible string.
func (d Dec8) Value() (interface{}, error) { return d.d.String(), nil }

// Scan implements sql.Scanner.
func (d *Dec8) Scan(src interface{}) error {
	v, ok := parse(src)
	if !ok {
		if b, ok2 := src.([]byte); ok2 {
			v, ok = parse(string(b))
		}
	}
	if !ok {
		*d = Zero8
		return nil
	}
	*d = Dec8{d: v.Round(8)}
	return nil
}

func (d Dec18) Value() (interface{}, error) { return d.d.String(), nil }

func (d *Dec18) Scan(src interface{}) error {
	v, ok := parse(src)
	if !ok {
		if b, ok2 := src.([]byte); ok2 {
			v, ok = parse(string(b))
		}
	}
	if !ok {
		*d = Zero18
		return nil
	}
	*d = Dec18{d: v.Round(18)}
	return nil
}
