package browser

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout},
		{"timed out", errors.New("operation timed out after 15s"), ErrCodeTimeout},
		{"missing node", errors.New("could not find node for selector #login"), ErrCodeElementNotFound},
		{"invisible node", errors.New("element is not visible"), ErrCodeElementNotFound},
		{"dns failure", errors.New("page load error net::ERR_NAME_NOT_RESOLVED"), ErrCodeNavigation},
		{"generic", errors.New("websocket closed unexpectedly"), ErrCodeExecutionFailure},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classifyError(tc.err))
		})
	}
}
