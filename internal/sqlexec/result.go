package sqlexec

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"
)

// Kind discriminates what a statement produced.
type Kind int

const (
	KindRows Kind = iota + 1
	KindAffected
)

// Record is one row keyed by column name.
type Record map[string]any

// Result is either the rows a statement returned or the number of rows it changed.
type Result struct {
	Kind     Kind
	Records  []Record
	Affected int64
}

// Rows wraps records read from a result set.
func Rows(records []Record) Result {
	if records == nil {
		records = []Record{}
	}
	return Result{Kind: KindRows, Records: records}
}

// Affected wraps the change count of a statement without a result set.
func Affected(n int64) Result { return Result{Kind: KindAffected, Affected: n} }

// MarshalJSON encodes rows as an array and mutations as {"affectedRows": n}.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Kind == KindAffected {
		return json.Marshal(struct {
			AffectedRows int64 `json:"affectedRows"`
		}{r.Affected})
	}
	if r.Records == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.Records)
}

// normalize turns text-protocol bytes into a JSON-friendly value based on the column type.
// Binary columns are base64 encoded.
func normalize(v any, dbType string) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	s := string(b)
	switch t := strings.ToUpper(dbType); {
	case isBinary(t):
		return base64.StdEncoding.EncodeToString(b)
	case strings.Contains(t, "INT") || t == "YEAR":
		if strings.HasPrefix(t, "UNSIGNED") {
			if n, err := strconv.ParseUint(s, 10, 64); err == nil {
				return n
			}
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case t == "DECIMAL" || t == "FLOAT" || t == "DOUBLE" || t == "REAL" || t == "NUMERIC":
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}

func isBinary(t string) bool {
	switch t {
	case "BINARY", "VARBINARY", "BIT", "GEOMETRY":
		return true
	}
	return strings.HasSuffix(t, "BLOB")
}
