package mbus

type Err string

func (e Err) Error() string {
	return string(e)
}

const (
	ErrMalformedTelegram = Err("malformed telegram")
	ErrDecryption        = Err("decryption failed")

	// StartMarker is the hex text every telegram begins with: the M-Bus long
	// frame start byte 0x68 followed by the length byte 0xFA.
	StartMarker = "68FA"

	// TelegramLength is the number of hex characters collected per telegram
	// (282 data-link bytes plus 6 bytes of framing).
	TelegramLength = (282 + 6) * 2

	// The header is fully contained in the first 26 bytes.
	minHeaderLength = 52

	systemTitleLength  = 8
	frameCounterLength = 4
)

// Header holds the fixed-offset fields of a telegram, still hex encoded.
type Header struct {
	// Start is the long frame start sequence (68 L L 68)
	Start string
	// FrameLength is the declared data-link length of the first frame
	FrameLength int
	// SystemTitle identifies the sending meter (manufacturer + serial)
	SystemTitle  string
	FrameCounter string
	Ciphertext   string
}
