// Package model implements the engine collaborator that spec §6.1 names
// only as an interface: the schema/column/row/datum/transaction types that
// the log container and database file layer are built against. It mirrors
// the teacher's own column type system (pkg/types.Comparable, DataType) but
// is JSON-native throughout, since every value that crosses the log is a
// JSON value.
package model

import (
	"encoding/json"

	"github.com/opsdb/core/pkg/errs"
)

// Type is the column type, matching the teacher's DataType enum in shape
// (Int/Varchar/Bool/Float/Date) plus the UUID type every table carries for
// its row identity column.
type Type int

const (
	TypeInteger Type = iota
	TypeReal
	TypeBoolean
	TypeString
	TypeUUID
)

func (t Type) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeReal:
		return "real"
	case TypeBoolean:
		return "boolean"
	case TypeString:
		return "string"
	case TypeUUID:
		return "uuid"
	default:
		return "unknown"
	}
}

func typeFromString(s string) (Type, error) {
	switch s {
	case "integer":
		return TypeInteger, nil
	case "real":
		return TypeReal, nil
	case "boolean":
		return TypeBoolean, nil
	case "string":
		return TypeString, nil
	case "uuid":
		return TypeUUID, nil
	default:
		return 0, errs.New(errs.KindSyntax, "unknown column type %q", s)
	}
}

// Datum is a single column value. It mirrors types.Comparable's role but is
// always representable as JSON, since that is the only wire format the log
// ever carries.
type Datum struct {
	typ   Type
	inner any // int64, float64, bool, or string
}

// Default returns the zero value for a type: 0, 0.0, false, "", or an
// empty UUID string.
func Default(t Type) Datum {
	switch t {
	case TypeInteger:
		return Datum{typ: t, inner: int64(0)}
	case TypeReal:
		return Datum{typ: t, inner: float64(0)}
	case TypeBoolean:
		return Datum{typ: t, inner: false}
	case TypeString:
		return Datum{typ: t, inner: ""}
	case TypeUUID:
		return Datum{typ: t, inner: ""}
	default:
		return Datum{typ: t}
	}
}

// IsDefault reports whether the datum equals its type's zero value — the
// codec leaves default-valued columns out of an insert (spec §4.B).
func (d Datum) IsDefault() bool {
	return d == Default(d.typ)
}

func (d Datum) Type() Type { return d.typ }

func (d Datum) Int() int64     { v, _ := d.inner.(int64); return v }
func (d Datum) Real() float64  { v, _ := d.inner.(float64); return v }
func (d Datum) Bool() bool     { v, _ := d.inner.(bool); return v }
func (d Datum) String() string { v, _ := d.inner.(string); return v }

func IntDatum(v int64) Datum      { return Datum{typ: TypeInteger, inner: v} }
func RealDatum(v float64) Datum   { return Datum{typ: TypeReal, inner: v} }
func BoolDatum(v bool) Datum      { return Datum{typ: TypeBoolean, inner: v} }
func StringDatum(v string) Datum  { return Datum{typ: TypeString, inner: v} }
func UUIDDatum(v string) Datum    { return Datum{typ: TypeUUID, inner: v} }

// ToJSON renders the datum the way it is stored in a transaction delta.
func (d Datum) ToJSON() (json.RawMessage, error) {
	return json.Marshal(d.inner)
}

// FromJSON parses raw into a datum of type t, the way a column value inside
// an insert/modify object is parsed (spec §4.B).
func FromJSON(t Type, raw json.RawMessage) (Datum, error) {
	switch t {
	case TypeInteger:
		var v int64
		if err := json.Unmarshal(raw, &v); err != nil {
			return Datum{}, errs.Wrap(errs.KindConstraint, err, "invalid integer value")
		}
		return IntDatum(v), nil
	case TypeReal:
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return Datum{}, errs.Wrap(errs.KindConstraint, err, "invalid real value")
		}
		return RealDatum(v), nil
	case TypeBoolean:
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return Datum{}, errs.Wrap(errs.KindConstraint, err, "invalid boolean value")
		}
		return BoolDatum(v), nil
	case TypeString:
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return Datum{}, errs.Wrap(errs.KindConstraint, err, "invalid string value")
		}
		return StringDatum(v), nil
	case TypeUUID:
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return Datum{}, errs.Wrap(errs.KindConstraint, err, "invalid uuid value")
		}
		return UUIDDatum(v), nil
	default:
		return Datum{}, errs.New(errs.KindConstraint, "unsupported column type %v", t)
	}
}
