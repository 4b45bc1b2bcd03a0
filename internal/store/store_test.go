package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pq.Error{Code: "23505", Constraint: "users_email_key"}
	assert.True(t, IsUniqueViolation(dup))

	// Store methods wrap driver errors; detection must see through that.
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert user: %w", dup)))

	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"})) // FK violation
	assert.False(t, IsUniqueViolation(errors.New("connection reset")))
	assert.False(t, IsUniqueViolation(nil))
}
