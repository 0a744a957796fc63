// Package errors_test provides unit tests for the AppError type, factory
// functions, and error-chain helpers defined in pkg/errors/errors.go.
package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/label-traiter/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// TestNew
// ─────────────────────────────────────────────────────────────────────────────

func TestNew_FieldsAreSetCorrectly(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		code    errors.ErrorCode
		message string
	}{
		{"internal error", errors.CodeInternal, "unexpected failure"},
		{"unknown category", errors.ErrCodeUnknownCategory, `category "trs" is not recognised`},
		{"input access", errors.ErrCodeInputAccess, "text directory is missing"},
		{"validation", errors.ErrCodeValidation, "score cutoff out of range"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ae := errors.New(tc.code, tc.message)

			require.NotNil(t, ae)
			assert.Equal(t, tc.code, ae.Code)
			assert.Equal(t, tc.message, ae.Message)
			assert.Empty(t, ae.Detail)
			assert.Nil(t, ae.Cause)
		})
	}
}

func TestNewf_FormatsMessage(t *testing.T) {
	t.Parallel()

	ae := errors.Newf(errors.ErrCodeEntityContract, "entity %d overlaps entity %d", 3, 2)
	assert.Equal(t, "entity 3 overlaps entity 2", ae.Message)
}

func TestNew_StackIsPopulated(t *testing.T) {
	t.Parallel()

	ae := errors.New(errors.CodeInternal, "test")
	require.NotNil(t, ae)
	assert.Contains(t, ae.Stack, "errors_test.go")
}

// ─────────────────────────────────────────────────────────────────────────────
// TestWrap
// ─────────────────────────────────────────────────────────────────────────────

func TestWrap_NilErrReturnsNil(t *testing.T) {
	t.Parallel()

	assert.Nil(t, errors.Wrap(nil, errors.CodeInternal, "should not matter"))
	assert.Nil(t, errors.Wrapf(nil, errors.CodeInternal, "should %s", "not matter"))
}

func TestWrap_CauseChainIsPreserved(t *testing.T) {
	t.Parallel()

	root := stderrors.New("open labels/a.txt: permission denied")
	wrapped := errors.Wrap(root, errors.ErrCodeInputAccess, "read label text")

	require.NotNil(t, wrapped)
	assert.Equal(t, errors.ErrCodeInputAccess, wrapped.Code)
	assert.Equal(t, root, wrapped.Cause)
	assert.Equal(t, root, stderrors.Unwrap(wrapped))
	assert.True(t, stderrors.Is(wrapped, root))
}

func TestWrap_PreservesOriginalCodeWhenCodeUnknown(t *testing.T) {
	t.Parallel()

	inner := errors.New(errors.ErrCodeMalformedPayload, "number is not a string")
	outer := errors.Wrap(inner, errors.CodeUnknown, "label 0001")

	require.NotNil(t, outer)
	assert.Equal(t, errors.ErrCodeMalformedPayload, outer.Code)
}

func TestWrap_OverridesCodeWhenExplicit(t *testing.T) {
	t.Parallel()

	inner := errors.New(errors.ErrCodeSinkFailed, "kafka unavailable")
	outer := errors.Wrapf(inner, errors.ErrCodeExportFailed, "sink %s", "kafka")

	assert.Equal(t, errors.ErrCodeExportFailed, outer.Code)
	assert.Equal(t, "sink kafka", outer.Message)
}

// ─────────────────────────────────────────────────────────────────────────────
// TestError_Method
// ─────────────────────────────────────────────────────────────────────────────

func TestError_Format(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  *errors.AppError
		want string
	}{
		{
			name: "message only",
			err:  errors.New(errors.ErrCodeUnknownCategory, "unknown category"),
			want: "[ENT_001] unknown category",
		},
		{
			name: "with detail",
			err:  errors.New(errors.ErrCodeInputAccess, "read label text").WithDetail("labels/0001.txt"),
			want: "[INP_001] read label text: labels/0001.txt",
		},
		{
			name: "with cause",
			err:  errors.Wrap(fmt.Errorf("disk full"), errors.ErrCodeExportFailed, "write combined output"),
			want: "[EXP_001] write combined output: disk full",
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, tc.err.Error())
		})
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// TestWithDetail / TestWithCause
// ─────────────────────────────────────────────────────────────────────────────

func TestWithDetail_DoesNotMutateOriginal(t *testing.T) {
	t.Parallel()

	original := errors.New(errors.CodeNotFound, "resource missing")
	detailed := original.WithDetail("id=42")

	assert.Empty(t, original.Detail)
	assert.Equal(t, "id=42", detailed.Detail)
	assert.Equal(t, original.Code, detailed.Code)
}

func TestWithCause_AttachesCause(t *testing.T) {
	t.Parallel()

	root := stderrors.New("connection refused")
	original := errors.New(errors.ErrCodeSinkFailed, "sink failed")
	ae := original.WithCause(root)

	assert.Nil(t, original.Cause)
	assert.Equal(t, root, stderrors.Unwrap(ae))
}

func TestNilReceivers(t *testing.T) {
	t.Parallel()

	var ae *errors.AppError
	assert.Nil(t, ae.WithDetail("x"))
	assert.Nil(t, ae.WithCause(stderrors.New("x")))
}

// ─────────────────────────────────────────────────────────────────────────────
// TestIsCode / TestGetCode / TestIsFatal
// ─────────────────────────────────────────────────────────────────────────────

func TestIsCode_NestedChain(t *testing.T) {
	t.Parallel()

	root := errors.New(errors.ErrCodeEntityContract, "overlap")
	wrapped := errors.Wrap(root, errors.CodeInternal, "process label")
	std := fmt.Errorf("run: %w", wrapped)

	assert.True(t, errors.IsCode(std, errors.ErrCodeEntityContract))
	assert.True(t, errors.IsCode(std, errors.CodeInternal))
	assert.False(t, errors.IsCode(std, errors.ErrCodeInputAccess))
	assert.False(t, errors.IsCode(nil, errors.CodeInternal))
}

func TestGetCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, errors.CodeOK, errors.GetCode(nil))
	assert.Equal(t, errors.CodeUnknown, errors.GetCode(stderrors.New("plain")))
	assert.Equal(t, errors.ErrCodeValidation,
		errors.GetCode(fmt.Errorf("load: %w", errors.InvalidParam("bad"))))
}

func TestIsFatal(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", stderrors.New("boom"), true},
		{"input access", errors.New(errors.ErrCodeInputAccess, "x"), true},
		{"encoding", errors.New(errors.ErrCodeInputEncoding, "x"), true},
		{"contract", errors.New(errors.ErrCodeEntityContract, "x"), true},
		{"export", errors.New(errors.ErrCodeExportFailed, "x"), true},
		{"not found", errors.NotFound("image"), false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, errors.IsFatal(tc.err))
		})
	}
}
