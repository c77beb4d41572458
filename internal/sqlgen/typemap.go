package sqlgen

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// nullStoreType declares parameters whose value is nil and whose column
// carries no explicit store type.
const nullStoreType = "VARCHAR(1)"

// TypeMapper maps Go values to Firebird parameter types and converts
// values to what the driver accepts for a given type.
type TypeMapper struct{}

// NewTypeMapper creates a new type mapper.
func NewTypeMapper() *TypeMapper {
	return &TypeMapper{}
}

// baseType strips size and precision: "VARCHAR(20)" -> "VARCHAR",
// "BLOB SUB_TYPE TEXT" -> "BLOB".
func baseType(storeType string) string {
	t := strings.ToUpper(strings.TrimSpace(storeType))
	if idx := strings.Index(t, "("); idx > 0 {
		t = strings.TrimSpace(t[:idx])
	}
	if t == "DOUBLE PRECISION" {
		return t
	}
	if idx := strings.Index(t, " "); idx > 0 {
		t = t[:idx]
	}
	return t
}

// InferStoreType returns the Firebird type used to declare a parameter
// holding value.
func (tm *TypeMapper) InferStoreType(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return nullStoreType
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return "BIGINT"
		}
		return "DOUBLE PRECISION"
	case int8, int16, uint8:
		return "SMALLINT"
	case int32, uint16:
		return "INTEGER"
	case int, int64, uint, uint32, uint64:
		return "BIGINT"
	case float32:
		return "FLOAT"
	case float64:
		return "DOUBLE PRECISION"
	case bool:
		return "BOOLEAN"
	case string:
		n := utf8.RuneCountInString(v)
		if n == 0 {
			n = 1
		}
		return fmt.Sprintf("VARCHAR(%d)", n)
	case []byte:
		return "BLOB SUB_TYPE BINARY"
	case time.Time:
		return "TIMESTAMP"
	default:
		return "BLOB SUB_TYPE TEXT"
	}
}

// IsIntegral reports whether storeType holds whole numbers that fit the
// block's BIGINT output column.
func (tm *TypeMapper) IsIntegral(storeType string) bool {
	switch baseType(storeType) {
	case "SMALLINT", "INTEGER", "INT", "BIGINT":
		return true
	default:
		return false
	}
}

// ConvertToDBValue converts a Go value to a driver value for storeType.
// Nil stays nil.
func (tm *TypeMapper) ConvertToDBValue(value interface{}, storeType string) (interface{}, error) {
	if value == nil {
		return nil, nil
	}

	switch baseType(storeType) {
	case "SMALLINT", "INTEGER", "INT", "BIGINT":
		return tm.toInt64(value)
	case "FLOAT", "DOUBLE PRECISION", "REAL":
		return tm.toFloat64(value)
	case "DECIMAL", "NUMERIC":
		return tm.toString(value)
	case "VARCHAR", "CHAR":
		return tm.toString(value)
	case "BLOB":
		if strings.Contains(strings.ToUpper(storeType), "TEXT") {
			return tm.toString(value)
		}
		return tm.toBytes(value)
	case "DATE", "TIME", "TIMESTAMP":
		return tm.toTime(value)
	case "BOOLEAN":
		return tm.toBool(value)
	default:
		return value, nil
	}
}

func (tm *TypeMapper) toInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("cannot convert number to int64: %w", err)
		}
		return i, nil
	case string:
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert string to int64: %w", err)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", value)
	}
}

func (tm *TypeMapper) toFloat64(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert string to float64: %w", err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", value)
	}
}

func (tm *TypeMapper) toString(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case []byte:
		return string(v), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v), nil
	case float32, float64:
		return fmt.Sprintf("%g", v), nil
	case bool:
		return strconv.FormatBool(v), nil
	case time.Time:
		return v.Format(time.RFC3339), nil
	default:
		bytes, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("cannot convert %T to string: %w", value, err)
		}
		return string(bytes), nil
	}
}

func (tm *TypeMapper) toBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to []byte", value)
	}
}

func (tm *TypeMapper) toTime(value interface{}) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		formats := []string{
			time.RFC3339,
			time.RFC3339Nano,
			"2006-01-02 15:04:05",
			"2006-01-02T15:04:05",
			"2006-01-02",
		}
		for _, format := range formats {
			if t, err := time.Parse(format, v); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse time string: %s", v)
	case int64:
		// Unix seconds.
		return time.Unix(v, 0), nil
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to time.Time", value)
	}
}

func (tm *TypeMapper) toBool(value interface{}) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case int, int8, int16, int32, int64:
		return reflect.ValueOf(v).Int() != 0, nil
	case uint, uint8, uint16, uint32, uint64:
		return reflect.ValueOf(v).Uint() != 0, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			if i, err := strconv.ParseInt(v, 10, 64); err == nil {
				return i != 0, nil
			}
			return false, fmt.Errorf("cannot convert string to bool: %w", err)
		}
		return b, nil
	default:
		return false, fmt.Errorf("cannot convert %T to bool", value)
	}
}

// Literal renders value as a PSQL literal, for write columns that are
// not sent as parameters.
func (tm *TypeMapper) Literal(value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if v {
			return "TRUE", nil
		}
		return "FALSE", nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v), nil
	case float32, float64:
		return fmt.Sprintf("%g", v), nil
	case json.Number:
		return v.String(), nil
	case time.Time:
		return "'" + v.Format("2006-01-02 15:04:05.0000") + "'", nil
	case []byte:
		return "", fmt.Errorf("binary values must be sent as parameters")
	default:
		s, err := tm.toString(v)
		if err != nil {
			return "", err
		}
		return "'" + strings.ReplaceAll(s, "'", "''") + "'", nil
	}
}
