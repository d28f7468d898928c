package chain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinafi/leverbot/internal/domain"
)

// encodeErrorString builds the abi-encoded Error(string) payload a node
// attaches to revert responses.
func encodeErrorString(reason string) []byte {
	payload := append([]byte{}, errorSelector...)

	word := func(n int) []byte {
		w := make([]byte, 32)
		for i := 0; n > 0; i++ {
			w[31-i] = byte(n)
			n >>= 8
		}
		return w
	}

	payload = append(payload, word(0x20)...)
	payload = append(payload, word(len(reason))...)

	data := []byte(reason)
	padded := make([]byte, (len(data)+31)/32*32)
	copy(padded, data)
	return append(payload, padded...)
}

func TestDecodeErrorString(t *testing.T) {
	reason, ok := decodeErrorString(encodeErrorString("ERC20: transfer amount exceeds balance"))
	require.True(t, ok)
	assert.Equal(t, "ERC20: transfer amount exceeds balance", reason)

	_, ok = decodeErrorString([]byte{0x01, 0x02})
	assert.False(t, ok)

	// Wrong selector.
	payload := encodeErrorString("x")
	payload[0] = 0xff
	_, ok = decodeErrorString(payload)
	assert.False(t, ok)
}

type fakeDataError struct {
	msg  string
	data interface{}
}

func (e *fakeDataError) Error() string          { return e.msg }
func (e *fakeDataError) ErrorData() interface{} { return e.data }

func TestClassifyCallErrorRevertPayload(t *testing.T) {
	payload := encodeErrorString("debt exceeds pool capacity")
	err := classifyCallError("operate", &fakeDataError{
		msg:  "execution reverted",
		data: "0x" + hexString(payload),
	})

	assert.ErrorIs(t, err, domain.ErrContractRevert)
	var revert *domain.RevertError
	require.True(t, errors.As(err, &revert))
	assert.Equal(t, "debt exceeds pool capacity", revert.Reason)
}

func TestClassifyCallErrorAccessControl(t *testing.T) {
	payload := encodeErrorString("AccessControl: account 0xabc is missing role 0xdef")
	err := classifyCallError("updateRateProvider", &fakeDataError{
		msg:  "execution reverted",
		data: "0x" + hexString(payload),
	})
	assert.ErrorIs(t, err, domain.ErrAccessControl)
}

func TestClassifyCallErrorInsufficientFunds(t *testing.T) {
	err := classifyCallError("approve", errors.New("insufficient funds for gas * price + value"))
	assert.ErrorIs(t, err, domain.ErrInsufficientGas)
}

func TestClassifyCallErrorNetworkFallback(t *testing.T) {
	err := classifyCallError("balanceOf", errors.New("connection refused"))
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestClassifySendError(t *testing.T) {
	assert.ErrorIs(t, classifySendError(errors.New("insufficient funds for transfer")), domain.ErrInsufficientGas)
	assert.ErrorIs(t, classifySendError(errors.New("execution reverted: paused")), domain.ErrContractRevert)
	assert.ErrorIs(t, classifySendError(errors.New("i/o timeout")), domain.ErrNetwork)
}

func TestClampGas(t *testing.T) {
	// 20% buffer below the ceiling.
	assert.Equal(t, uint64(120_000), clampGas(100_000, 3_000_000))
	// Buffered estimate above the ceiling is capped.
	assert.Equal(t, uint64(3_000_000), clampGas(2_900_000, 3_000_000))
	// Zero ceiling disables the cap.
	assert.Equal(t, uint64(6_000_000), clampGas(5_000_000, 0))
}

func hexString(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, 0, len(b)*2)
	for _, c := range b {
		out = append(out, digits[c>>4], digits[c&0x0f])
	}
	return string(out)
}
