package repository

import (
	stdsql "database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"
	dateLayout      = "2006-01-02"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		// tolerate rows written by hand or by older builds
		t, err = time.Parse(time.RFC3339Nano, s)
	}
	return t, err
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

func nullable(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableUUID(p *uuid.UUID) any {
	if p == nil {
		return nil
	}
	return p.String()
}

func ptr(ns stdsql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func parseID(s, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse %s id %q: %w", what, s, err)
	}
	return id, nil
}
