// Package packet implements the Wake-on-LAN magic packet codec: building
// canonical packets from hardware address strings and recognizing the target
// address embedded in received buffers.
//
// Recognition runs configurable regular expressions against the lowercase hex
// encoding of a buffer, so relaxed dialects (trailing SecureOn password
// bytes, padding) can be admitted by configuration alone without touching the
// builder, which always emits the canonical 102-byte form.
package packet

import (
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	hwAddrLen = 6
	syncLen   = 6
	hwRepeats = 16

	// MagicPacketLen is the size of a canonical magic packet: six 0xFF sync
	// bytes followed by sixteen repetitions of the 6-byte hardware address.
	MagicPacketLen = syncLen + hwRepeats*hwAddrLen
)

// Default patterns, applied to the lowercase hex encoding of a buffer.
const (
	// DefaultShapePattern matches exactly one canonical magic packet with no
	// trailing data.
	DefaultShapePattern = `^f{12}([0-9a-f]{12}){16}$`

	// DefaultExtractPattern captures the six octets of the first hardware
	// address repetition. A custom pattern must yield at least six
	// two-hex-digit capture groups.
	DefaultExtractPattern = `^f{12}([0-9a-f]{2})([0-9a-f]{2})([0-9a-f]{2})([0-9a-f]{2})([0-9a-f]{2})([0-9a-f]{2})`
)

// ErrBadHardwareAddr is returned by Build when the hardware address string
// does not reduce to exactly 12 hex digits.
var ErrBadHardwareAddr = errors.New("packet: hardware address is not 12 hex digits")

var separators = strings.NewReplacer(":", "", "-", "")

// Build constructs the canonical 102-byte magic packet for the given hardware
// address. Colon and dash separators are accepted and case is ignored.
func Build(hwAddr string) ([]byte, error) {
	cleaned := separators.Replace(strings.TrimSpace(hwAddr))
	if len(cleaned) != 2*hwAddrLen {
		return nil, fmt.Errorf("%w: %q", ErrBadHardwareAddr, hwAddr)
	}
	mac, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadHardwareAddr, hwAddr)
	}

	pkt := make([]byte, 0, MagicPacketLen)
	for i := 0; i < syncLen; i++ {
		pkt = append(pkt, 0xff)
	}
	for i := 0; i < hwRepeats; i++ {
		pkt = append(pkt, mac...)
	}
	return pkt, nil
}

// Normalize returns the canonical colon-separated lowercase form of a
// hardware address string, or an error if it is not 12 hex digits.
func Normalize(hwAddr string) (string, error) {
	pkt, err := Build(hwAddr)
	if err != nil {
		return "", err
	}
	octets := make([]string, hwAddrLen)
	for i := 0; i < hwAddrLen; i++ {
		octets[i] = hex.EncodeToString(pkt[syncLen+i : syncLen+i+1])
	}
	return strings.Join(octets, ":"), nil
}

// Matcher decides whether a received buffer is WOL-shaped and extracts the
// embedded hardware address. A Matcher is immutable and safe for concurrent
// use by multiple listeners.
type Matcher struct {
	shape   *regexp.Regexp
	extract *regexp.Regexp
}

// NewMatcher compiles the shape and extraction patterns. Empty strings select
// the defaults. Patterns are matched against lowercase hex, so custom
// patterns should use lowercase character classes.
func NewMatcher(shapePattern, extractPattern string) (*Matcher, error) {
	if shapePattern == "" {
		shapePattern = DefaultShapePattern
	}
	if extractPattern == "" {
		extractPattern = DefaultExtractPattern
	}

	shape, err := regexp.Compile(shapePattern)
	if err != nil {
		return nil, fmt.Errorf("compile shape pattern: %w", err)
	}
	extract, err := regexp.Compile(extractPattern)
	if err != nil {
		return nil, fmt.Errorf("compile extraction pattern: %w", err)
	}
	return &Matcher{shape: shape, extract: extract}, nil
}

// IsMagic reports whether buf matches the configured packet shape.
func (m *Matcher) IsMagic(buf []byte) bool {
	return m.shape.MatchString(hex.EncodeToString(buf))
}

// HardwareAddr extracts the target hardware address from buf in canonical
// colon-separated form. The second return value is false when the capture
// pattern does not match or yields fewer than six groups.
func (m *Matcher) HardwareAddr(buf []byte) (string, bool) {
	sub := m.extract.FindStringSubmatch(hex.EncodeToString(buf))
	if len(sub) < 1+hwAddrLen {
		return "", false
	}
	return strings.Join(sub[1:1+hwAddrLen], ":"), true
}
