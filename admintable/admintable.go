// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package admintable

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

type Kind int

const (
	Integer Kind = iota
	String
	JSON
	DateTime
	IntArray
)

func (k Kind) String() string {
	switch k {
	case Integer:
		return "INTEGER"
	case String:
		return "VARCHAR"
	case JSON:
		return "JSON"
	case DateTime:
		return "DATETIME"
	case IntArray:
		return "INTEGER[]"
	default:
		return "UNKNOWN"
	}
}

type Column struct {
	Name     string
	Kind     Kind
	Nullable bool
}

type Table struct {
	// Name is the name the panel uses; SQLName is the real table.
	Name    string
	SQLName string
	// Key is the primary key column used by update and delete.
	Key     string
	Columns []Column
}

// Mode selects how strictly values are checked. Updates come from the
// grid editor as strings and are converted; inserts must be typed.
type Mode int

const (
	ForInsert Mode = iota
	ForUpdate
)

// RowError rejects a submitted row. Message is shown to the admin as is.
// Null is set when an update blanks a required column.
type RowError struct {
	Message string
	Null    bool
}

func (e *RowError) Error() string { return e.Message }

func rowErr(format string, args ...any) *RowError {
	return &RowError{Message: fmt.Sprintf(format, args...)}
}

func col(name string, kind Kind) Column  { return Column{Name: name, Kind: kind} }
func null(name string, kind Kind) Column { return Column{Name: name, Kind: kind, Nullable: true} }
func stamps() []Column {
	return []Column{col("created_at", DateTime), col("updated_at", DateTime)}
}

var tables = map[string]Table{
	"accounts": {Name: "accounts", SQLName: "accounts", Key: "id", Columns: append([]Column{
		col("id", Integer), col("username", String), col("password_hash", String),
		null("save_crc", String), null("save_timestamp", DateTime), null("save_id", String),
		col("coin_mp", Integer), col("title", Integer), col("avatar", Integer),
		col("mobile_delta", Integer), col("arcade_delta", Integer), col("total_delta", Integer),
	}, stamps()...)},
	"results": {Name: "results", SQLName: "results", Key: "id", Columns: []Column{
		col("id", Integer), col("device_id", String), null("user_id", Integer), col("stts", JSON),
		col("song_id", Integer), col("mode", Integer), col("avatar", Integer), col("score", Integer),
		col("high_score", JSON), col("play_rslt", JSON), col("item", Integer),
		col("os", String), col("os_ver", String), col("ver", String), col("created_at", DateTime),
	}},
	"devices": {Name: "devices", SQLName: "devices", Key: "device_id", Columns: append([]Column{
		col("device_id", String), null("user_id", Integer),
		null("my_stage", IntArray), null("my_avatar", IntArray), null("item", IntArray),
		col("daily_day", Integer), col("daily_timestamp", DateTime), col("coin", Integer),
		col("lvl", Integer), col("title", Integer), col("avatar", Integer),
	}, append(stamps(), null("bind_token", String), null("last_login_at", DateTime))...)},
	"whitelist": {Name: "whitelist", SQLName: "whitelists", Key: "id", Columns: []Column{
		col("id", Integer), col("device_id", String),
	}},
	"blacklist": {Name: "blacklist", SQLName: "blacklists", Key: "id", Columns: []Column{
		col("id", Integer), col("ban_terms", String), null("reason", String),
	}},
	"batch_tokens": {Name: "batch_tokens", SQLName: "batch_tokens", Key: "id", Columns: append([]Column{
		col("id", Integer), col("batch_token", String), col("expire_at", DateTime),
		col("uses_left", Integer), col("auth_id", String),
	}, stamps()...)},
	"binds": {Name: "binds", SQLName: "binds", Key: "id", Columns: []Column{
		col("id", Integer), col("user_id", Integer), col("bind_account", String),
		col("bind_code", String), col("is_verified", Integer), col("bind_date", DateTime),
	}},
	"webs": {Name: "webs", SQLName: "webs", Key: "id", Columns: append([]Column{
		col("id", Integer), col("user_id", Integer), col("permission", Integer),
		col("web_token", String), col("last_save_export", Integer),
	}, stamps()...)},
	"logs": {Name: "logs", SQLName: "logs", Key: "id", Columns: []Column{
		col("id", Integer), col("user_id", Integer), col("filename", String),
		col("filesize", Integer), col("timestamp", DateTime),
	}},
}

// Lookup returns the table the panel calls name.
func Lookup(name string) (Table, bool) {
	t, ok := tables[name]
	return t, ok
}

// Names lists the panel's tables in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(tables))
	for n := range tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the columns in declaration order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Schema maps each column to its type name for the grid editor.
func (t Table) Schema() map[string]string {
	s := make(map[string]string, len(t.Columns))
	for _, c := range t.Columns {
		s[c.Name] = c.Kind.String()
	}
	return s
}

// ClampSize bounds a requested page size to 10..100.
func ClampSize(size int) int {
	return max(10, min(100, size))
}

// Validate checks every field of row against the table and returns the
// converted values. Integers become int64, JSON becomes its encoded text,
// date-times become time.Time and integer arrays become []int64. A blank
// nullable value becomes nil.
func (t Table) Validate(row map[string]any, mode Mode) (map[string]any, error) {
	if row == nil {
		return nil, rowErr("Row data must be a JSON object.")
	}

	out := make(map[string]any, len(row))
	for _, key := range sortedKeys(row) {
		c, ok := t.Column(key)
		if !ok {
			return nil, rowErr("Field '%s' does not exist in table schema.", key)
		}
		v := row[key]
		if blank(v) {
			if c.Nullable && mode == ForUpdate {
				out[key] = nil
				continue
			}
			if mode == ForUpdate && key != t.Key {
				return nil, &RowError{Message: fmt.Sprintf("Field '%s' cannot be null.", key), Null: true}
			}
		}
		conv, err := convert(c, v, mode)
		if err != nil {
			return nil, err
		}
		out[key] = conv
	}

	if mode == ForUpdate {
		if _, ok := out[t.Key]; !ok || out[t.Key] == nil {
			return nil, rowErr("Row data must contain the primary key '%s'.", t.Key)
		}
	}
	return out, nil
}

func blank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func convert(c Column, v any, mode Mode) (any, error) {
	switch c.Kind {
	case Integer:
		return toInt(c.Name, v, mode)
	case String:
		s, ok := v.(string)
		if !ok {
			return nil, rowErr("Field '%s' must be a string.", c.Name)
		}
		return s, nil
	case JSON:
		return toJSON(c.Name, v, mode)
	case DateTime:
		return toTime(c.Name, v)
	case IntArray:
		return toIntArray(c.Name, v)
	}
	return v, nil
}

func toInt(name string, v any, mode Mode) (int64, error) {
	bad := rowErr("Field '%s' must be an integer.", name)
	switch x := v.(type) {
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return 0, bad
		}
		return n, nil
	case float64:
		if x != math.Trunc(x) {
			return 0, bad
		}
		return int64(x), nil
	case string:
		if mode != ForUpdate {
			return 0, bad
		}
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, bad
		}
		return n, nil
	}
	return 0, bad
}

func toJSON(name string, v any, mode Mode) (string, error) {
	switch x := v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case string:
		if mode == ForInsert && json.Valid([]byte(x)) {
			return x, nil
		}
	}
	return "", rowErr("Field '%s' must be a JSON object or array.", name)
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", time.DateTime, time.DateOnly}

func toTime(name string, v any) (time.Time, error) {
	switch x := v.(type) {
	case string:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, x); err == nil {
				return t, nil
			}
		}
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return unix(f), nil
		}
	case float64:
		return unix(x), nil
	}
	return time.Time{}, rowErr("Field '%s' must be a valid ISO datetime string or timestamp.", name)
}

func unix(f float64) time.Time {
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

func toIntArray(name string, v any) ([]int64, error) {
	bad := rowErr("Field '%s' must be an array of integers.", name)
	if s, ok := v.(string); ok {
		var decoded []any
		dec := json.NewDecoder(strings.NewReader(s))
		dec.UseNumber()
		if err := dec.Decode(&decoded); err != nil {
			return nil, bad
		}
		v = decoded
	}
	list, ok := v.([]any)
	if !ok {
		return nil, bad
	}
	out := make([]int64, 0, len(list))
	for _, e := range list {
		n, err := toInt(name, e, ForInsert)
		if err != nil {
			return nil, bad
		}
		out = append(out, n)
	}
	return out, nil
}
