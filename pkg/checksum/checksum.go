// Package checksum implements the 8-bit XOR fold used by the settings record
// and the uplink packet.
package checksum

// XOR folds every byte of data into a single byte.
func XOR(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum ^= b
	}
	return sum
}

// Verify reports whether the last byte of frame is the XOR fold of the bytes before it.
func Verify(frame []byte) bool {
	if len(frame) == 0 {
		return false
	}
	n := len(frame) - 1
	return XOR(frame[:n]) == frame[n]
}
