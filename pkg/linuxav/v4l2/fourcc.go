package v4l2

// FormatFourCC converts a 4-byte pixel format to a human-readable string.
func FormatFourCC(format uint32) string {
	b := make([]byte, 4)
	b[0] = byte(format & 0xFF)
	b[1] = byte((format >> 8) & 0xFF)
	b[2] = byte((format >> 16) & 0xFF)
	b[3] = byte((format >> 24) & 0xFF)
	return string(b)
}

// FourCC packs a four character code. Shorter codes are padded with spaces.
func FourCC(code string) uint32 {
	var b [4]byte
	for i := range b {
		b[i] = ' '
		if i < len(code) {
			b[i] = code[i]
		}
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
