package datastore

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/tphakala/iconscan/internal/errors"
)

// dbError wraps a driver error. kv holds alternating context keys and values.
func dbError(err error, operation string, kv ...any) error {
	b := errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation)
	for i := 0; i+1 < len(kv); i += 2 {
		b = b.Context(fmt.Sprint(kv[i]), kv[i+1])
	}
	return b.Build()
}

// validationError rejects a row before it reaches the database
func validationError(message, field string, value any) error {
	return errors.New(errors.NewStd(message)).
		Component("datastore").
		Category(errors.CategoryValidation).
		Context("field", field).
		Context("value", fmt.Sprint(value)).
		Build()
}

// lookupError turns gorm.ErrRecordNotFound into a not-found error for entity
func lookupError(err error, entity string, key any) error {
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dbError(err, "get_"+entity, "key", key)
	}
	return errors.Newf("%s %v not found", entity, key).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Context("entity", entity).
		Build()
}
