package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"bare", New(KindConfiguration, "boom"), "boom"},
		{"model", &Error{Kind: KindNotMapped, Model: "Hero", Message: "not mapped"}, "Hero: not mapped"},
		{"attr", Configf("Hero", "id", "bad %s", "thing"), "Hero.id: bad thing"},
		{"cause", Wrap(KindStorage, "insert", errors.New("disk")), "insert: disk"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("declaring: %w", Configf("Hero", "", "nope"))

	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.True(t, IsConfiguration(err))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, KindConfiguration, KindOf(err))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestUnwrapCause(t *testing.T) {
	cause := errors.New("root")
	err := Wrap(KindStorage, "flush", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsUnknownAttribute(UnknownAttribute("Hero", "x")))
	assert.Equal(t, "unknown_attribute", KindUnknownAttribute.String())
}
