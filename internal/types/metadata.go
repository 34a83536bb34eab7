package types

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Metadata represents a JSONB field for storing key-value pairs
type Metadata map[string]string

// Scan implements the sql.Scanner interface for Metadata
func (m *Metadata) Scan(value interface{}) error {
	result := make(Metadata)
	raw, err := jsonBytes(value)
	if err != nil || raw == nil {
		*m = result
		return err
	}
	err = json.Unmarshal(raw, &result)
	*m = result
	return err
}

// Value implements the driver.Valuer interface for Metadata
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return json.Marshal(make(Metadata))
	}
	return json.Marshal(m)
}

// Properties is an open JSONB map, used for usage event payloads and charge parameters.
// Numbers are kept as json.Number so monetary values never pass through float64.
type Properties map[string]interface{}

func (p *Properties) Scan(value interface{}) error {
	raw, err := jsonBytes(value)
	if err != nil || raw == nil {
		*p = Properties{}
		return err
	}
	return p.UnmarshalJSON(raw)
}

func (p Properties) Value() (driver.Value, error) {
	if p == nil {
		return json.Marshal(Properties{})
	}
	return json.Marshal(map[string]interface{}(p))
}

func (p *Properties) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	m := make(map[string]interface{})
	if err := dec.Decode(&m); err != nil {
		return err
	}
	*p = m
	return nil
}

// Decimal reads a numeric property. The second result is false when the key is
// missing or does not hold a number.
func (p Properties) Decimal(key string) (decimal.Decimal, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return decimal.Zero, false
	}
	return ToDecimal(v)
}

// DecimalOr reads a numeric property, falling back to def
func (p Properties) DecimalOr(key string, def decimal.Decimal) decimal.Decimal {
	if d, ok := p.Decimal(key); ok {
		return d
	}
	return def
}

// ToDecimal converts the numeric shapes a JSON payload can carry into a decimal
func ToDecimal(v interface{}) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(n)
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt32(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case uint:
		return decimal.NewFromInt(int64(n)), true
	}
	return decimal.Zero, false
}

// Stringify renders a property value for distinct counting. Numbers are
// normalised so 1, 1.0 and "1" count once.
func Stringify(v interface{}) string {
	if d, ok := ToDecimal(v); ok {
		return d.String()
	}
	switch s := v.(type) {
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	case fmt.Stringer:
		return s.String()
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}

func jsonBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	return nil, fmt.Errorf("failed to unmarshal JSONB value: %v", value)
}
