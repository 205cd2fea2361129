package domain

import (
	"errors"
	"strconv"
	"time"
)

// SchemaVersion tags every stream entry so consumers can reject fields
// they do not understand.
const SchemaVersion = "1"

var ErrMalformedRecord = errors.New("malformed_usage_record")

// Record is one admitted request, as written to the usage stream.
type Record struct {
	APIID     string
	ClientID  string
	Units     int64
	Bytes     int64
	Timestamp time.Time
}

// Values flattens the record into the field map carried by a stream entry.
func (r Record) Values() map[string]interface{} {
	return map[string]interface{}{
		"schema":    SchemaVersion,
		"api_id":    r.APIID,
		"client_id": r.ClientID,
		"units":     strconv.FormatInt(r.Units, 10),
		"bytes":     strconv.FormatInt(r.Bytes, 10),
		"timestamp": r.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

// ParseRecord rebuilds a record from stream entry fields. Entries with a
// different schema version or missing identifiers are malformed.
func ParseRecord(values map[string]interface{}) (Record, error) {
	schema := stringField(values, "schema")
	if schema != SchemaVersion {
		return Record{}, ErrMalformedRecord
	}

	record := Record{
		APIID:    stringField(values, "api_id"),
		ClientID: stringField(values, "client_id"),
	}
	if record.APIID == "" || record.ClientID == "" {
		return Record{}, ErrMalformedRecord
	}

	var err error
	if record.Units, err = intField(values, "units"); err != nil {
		return Record{}, ErrMalformedRecord
	}
	if record.Bytes, err = intField(values, "bytes"); err != nil {
		return Record{}, ErrMalformedRecord
	}

	ts := stringField(values, "timestamp")
	record.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Record{}, ErrMalformedRecord
	}

	return record, nil
}

// Day truncates the record timestamp to its UTC calendar day.
func (r Record) Day() time.Time {
	t := r.Timestamp.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func stringField(values map[string]interface{}, key string) string {
	if v, ok := values[key].(string); ok {
		return v
	}
	return ""
}

func intField(values map[string]interface{}, key string) (int64, error) {
	raw := stringField(values, key)
	if raw == "" {
		return 0, ErrMalformedRecord
	}
	return strconv.ParseInt(raw, 10, 64)
}
