package awb_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nexuscargo/nexuscargo/platform/internal/domain/awb"
)

func TestValidateAWB(t *testing.T) {
	valid, messages := awb.ValidateAWB("123-12345678", 10.5)
	assert.True(t, valid)
	assert.Empty(t, messages)

	invalid, messages := awb.ValidateAWB("123-abc", 0)
	assert.False(t, invalid)
	assert.Equal(t, []string{"AWB format must be XXX-XXXXXXXX", "Weight must be positive"}, messages)
}
