package settlement

import (
	"fmt"
	"testing"

	"github.com/0x5487/rfq-settlement/protocol"
	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	assert.Equal(t, protocol.ErrorKindNone, KindOf(nil))
	assert.Nil(t, ErrorOf(protocol.ErrorKindNone))

	for _, e := range errorKinds {
		assert.Equal(t, e.kind, KindOf(e.err))
		assert.Equal(t, e.err, ErrorOf(e.kind))
		assert.Equal(t, e.kind, KindOf(fmt.Errorf("wrapped: %w", e.err)))
	}

	assert.Equal(t, protocol.ErrorKindUnknown, KindOf(ErrShutdown))
	assert.Equal(t, ErrInternal, ErrorOf(protocol.ErrorKindUnknown))

	// wire codes are stable
	assert.Equal(t, uint8(1), uint8(KindOf(ErrInvalidOrderSignature)))
	assert.Equal(t, uint8(5), uint8(KindOf(ErrMakerBalanceTooLow)))
	assert.Equal(t, uint8(12), uint8(KindOf(ErrBalanceViolation)))
	assert.Equal(t, "no_partial_fill", protocol.ErrorKindNoPartialFill.String())
}
