package chain

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/cinafi/leverbot/internal/domain"
)

// errorSelector is the 4-byte selector of the solidity Error(string) type
// that revert(reason) produces.
var errorSelector = []byte{0x08, 0xc3, 0x79, 0xa0}

// dataError is implemented by go-ethereum rpc errors that carry the revert
// payload returned by the node.
type dataError interface {
	Error() string
	ErrorData() interface{}
}

// classifyCallError maps an eth_call or estimateGas failure onto the domain
// error taxonomy. Revert payloads are decoded into RevertError so the reason
// string reaches the user.
func classifyCallError(method string, err error) error {
	if reason, ok := extractRevertReason(err); ok {
		if isAccessControlReason(reason) {
			return fmt.Errorf("%w: %s", domain.ErrAccessControl, reason)
		}
		return &domain.RevertError{Reason: reason}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "execution reverted"):
		return &domain.RevertError{Reason: strings.TrimSpace(strings.TrimPrefix(msg, "execution reverted:"))}
	case strings.Contains(msg, "insufficient funds"):
		return fmt.Errorf("%w: %v", domain.ErrInsufficientGas, err)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrNetwork, method, err)
}

// classifySendError maps an eth_sendRawTransaction failure onto the domain
// error taxonomy.
func classifySendError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "insufficient funds"):
		return fmt.Errorf("%w: %v", domain.ErrInsufficientGas, err)
	case strings.Contains(msg, "execution reverted"):
		return &domain.RevertError{Reason: strings.TrimSpace(strings.TrimPrefix(msg, "execution reverted:"))}
	}
	return fmt.Errorf("%w: sending transaction: %v", domain.ErrNetwork, err)
}

func isRevert(err error) bool {
	return errors.Is(err, domain.ErrContractRevert) || errors.Is(err, domain.ErrAccessControl)
}

// extractRevertReason pulls the ABI-encoded Error(string) payload out of an
// rpc error, when the node attached one.
func extractRevertReason(err error) (string, bool) {
	var de dataError
	if !errors.As(err, &de) {
		return "", false
	}

	raw, ok := de.ErrorData().(string)
	if !ok {
		return "", false
	}
	payload, decodeErr := hex.DecodeString(strings.TrimPrefix(raw, "0x"))
	if decodeErr != nil {
		return "", false
	}
	return decodeErrorString(payload)
}

// decodeErrorString decodes an abi-encoded Error(string) payload.
// Layout after the selector: 32-byte offset, 32-byte length, string bytes.
func decodeErrorString(payload []byte) (string, bool) {
	if len(payload) < 4+64 || !bytes.Equal(payload[:4], errorSelector) {
		return "", false
	}
	body := payload[4:]

	strLen := bigEndianWord(body[32:64])
	if strLen < 0 || 64+strLen > len(body) {
		return "", false
	}
	return string(body[64 : 64+strLen]), true
}

// bigEndianWord interprets the low 8 bytes of a 32-byte word; revert reasons
// never come close to overflowing that.
func bigEndianWord(word []byte) int {
	var n uint64
	for _, b := range word[len(word)-8:] {
		n = n<<8 | uint64(b)
	}
	return int(n)
}

// isAccessControlReason matches the OpenZeppelin AccessControl revert format.
func isAccessControlReason(reason string) bool {
	lower := strings.ToLower(reason)
	return strings.Contains(lower, "accesscontrol") || strings.Contains(lower, "missing role") || strings.Contains(lower, "is missing role")
}
