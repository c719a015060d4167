package http

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errMissing = errors.New("missing")

func TestErrorMap(t *testing.T) {
	m := ErrorMap{{Target: errMissing, Code: "ERR_MISSING", Status: http.StatusNotFound}}

	e := m.Map(fmt.Errorf("lookup x: %w", errMissing))
	assert.Equal(t, "ERR_MISSING", e.Code)
	assert.Equal(t, http.StatusNotFound, e.Status)
	assert.Equal(t, "lookup x: missing", e.Message)
	assert.ErrorIs(t, e, errMissing)

	e = m.Map(errors.New("dial tcp: refused"))
	assert.Equal(t, http.StatusInternalServerError, e.Status)
	assert.Equal(t, "Something went wrong", e.Message)

	own := NewAppError("ERR_X", "dates", "bad", http.StatusBadRequest)
	assert.Same(t, own, m.Map(fmt.Errorf("wrap: %w", own)))
}
