package apperrors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: KindUnknown},
		{name: "not found", err: NotFoundf("contest %s not found", "c1"), want: KindNotFound},
		{name: "validation", err: Validationf("option %q not offered", "E"), want: KindValidation},
		{name: "network", err: Wrap(errors.New("dial tcp: refused"), KindNetwork, "fetch contest"), want: KindNetwork},
		{name: "auth", err: Auth("session expired"), want: KindAuth},
		{name: "permission", err: &Error{Kind: KindPermission, Message: "not your contest"}, want: KindPermission},
		{name: "wrapped by fmt", err: fmt.Errorf("load: %w", NotFoundf("gone")), want: KindNotFound},
		{name: "double wrapped", err: fmt.Errorf("outer: %w", Wrap(errors.New("boom"), KindNetwork, "inner")), want: KindNetwork},
		{name: "context canceled", err: context.Canceled, want: KindNetwork},
		{name: "deadline exceeded", err: fmt.Errorf("load: %w", context.DeadlineExceeded), want: KindNetwork},
		{name: "plain error", err: errors.New("boom"), want: KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := Wrap(errors.New("connection reset"), KindNetwork, "failed to fetch question")
	assert.Equal(t, "failed to fetch question: connection reset", err.Error())
	assert.Equal(t, "network", err.Kind.String())

	bare := NotFoundf("no such contest")
	assert.Equal(t, "no such contest", bare.Error())
}

func TestUnwrapChain(t *testing.T) {
	cause := errors.New("row scan failed")
	err := Wrap(cause, KindUnknown, "fetch participant")
	assert.ErrorIs(t, err, cause)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(NotFoundf("gone")))
	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", NotFoundf("participant %s", "x"))))
	assert.False(t, IsNotFound(errors.New("gone")))
	assert.False(t, IsNotFound(nil))
}
