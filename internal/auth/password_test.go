package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/financeassistant/backend/internal/apperr"
)

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		name     string
		password string
		ok       bool
	}{
		{"valid", "Sup3rSecret", true},
		{"minimum length", "Aa345678", true},
		{"too short", "Aa34567", false},
		{"too long", strings.Repeat("Aa1", 43) + "x", false}, // 130 chars
		{"no upper", "sup3rsecret", false},
		{"no lower", "SUP3RSECRET", false},
		{"no digit", "SuperSecret", false},
		{"empty", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePassword(tc.password)
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.Equal(t, apperr.ValidationFailed, apperr.KindOf(err))
		})
	}
}
