package telemetry

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type gormHookFunc = func(name string, fn func(*gorm.DB)) error

// gormHook pairs an operation with its before/after registration points
type gormHook struct {
	op     string
	before gormHookFunc
	after  gormHookFunc
}

// gormHooks lists every GORM processor a statement can go through
func gormHooks(db *gorm.DB) []gormHook {
	cb := db.Callback()
	return []gormHook{
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}
}

// registerAround installs before/after callbacks named "<prefix>:<when>_<op>".
// after receives the operation name.
func registerAround(db *gorm.DB, prefix string, before func(*gorm.DB), after func(*gorm.DB, string)) error {
	for _, h := range gormHooks(db) {
		op := h.op
		if before != nil {
			if err := h.before(prefix+":before_"+op, before); err != nil {
				return err
			}
		}
		if after != nil {
			if err := h.after(prefix+":after_"+op, func(tx *gorm.DB) { after(tx, op) }); err != nil {
				return err
			}
		}
	}
	return nil
}

type startTimeKey string

// markStart stores the statement start time under key
func markStart(key startTimeKey) func(*gorm.DB) {
	return func(db *gorm.DB) {
		if db.Statement.Context != nil {
			db.Statement.Context = context.WithValue(db.Statement.Context, key, time.Now())
		}
	}
}

// elapsedSince returns the time since markStart ran, and false when it never did
func elapsedSince(db *gorm.DB, key startTimeKey) (time.Duration, bool) {
	if db.Statement.Context == nil {
		return 0, false
	}
	start, ok := db.Statement.Context.Value(key).(time.Time)
	if !ok {
		return 0, false
	}
	return time.Since(start), true
}
