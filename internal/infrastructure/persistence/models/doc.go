// Package models holds the GORM persistence models of the billing engine and
// their conversions to and from domain types. Domain types never carry gorm
// tags; every table is described here.
package models
