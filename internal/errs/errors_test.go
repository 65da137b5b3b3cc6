package errs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Message(t *testing.T) {
	e := New(ErrKindNotFound, "entity public.Movie not found")
	assert.Equal(t, "[not_found] entity public.Movie not found", e.Error())

	w := Wrap(ErrKindConstraint, "insert rejected", errors.New("violates foreign key"))
	assert.Equal(t, "[constraint] insert rejected: violates foreign key", w.Error())
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		kind ErrKind
		is   func(error) bool
	}{
		{ErrKindNotFound, IsNotFound},
		{ErrKindTimeout, IsTimeout},
		{ErrKindConnectionFailed, IsConnectionFailed},
		{ErrKindQueryFailed, IsQueryFailed},
		{ErrKindInvalidInput, IsInvalidInput},
		{ErrKindPermissionDenied, IsPermissionDenied},
		{ErrKindInvalidField, IsInvalidField},
		{ErrKindDuplicateEntity, IsDuplicateEntity},
		{ErrKindDanglingReference, IsDanglingReference},
		{ErrKindConstraint, IsConstraint},
		{ErrKindAlreadyExists, IsAlreadyExists},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := fmt.Errorf("outer: %w", New(tt.kind, "boom"))
			assert.True(t, tt.is(err))
			assert.Equal(t, tt.kind, KindOf(err))
			assert.False(t, tt.is(errors.New("plain")))
		})
	}
}

func TestWrap_PreservesCause(t *testing.T) {
	err := Wrap(ErrKindTimeout, "query cancelled", context.Canceled)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, IsTimeout(err))
}

func TestAll_FlattensCombinedErrors(t *testing.T) {
	var acc error
	acc = Append(acc, New(ErrKindDanglingReference, "a"))
	acc = Append(acc, nil)
	acc = Append(acc, New(ErrKindInvalidField, "b"))
	acc = Append(acc, errors.New("c"))

	all := All(acc)
	require.Len(t, all, 3)
	assert.Equal(t, ErrKindDanglingReference, all[0].Kind)
	assert.Equal(t, ErrKindInvalidField, all[1].Kind)
	assert.Equal(t, ErrKindUnknown, all[2].Kind)

	assert.True(t, IsDanglingReference(acc))
	assert.Nil(t, All(nil))
}
