package mbus

import (
	"encoding/hex"
	"fmt"
	"strconv"
)

// Parse slices a telegram into its header fields. The offsets are fixed by the
// bridge's frame layout:
//
//	[0,8)    68 L L 68
//	[22,38)  system title
//	[44,52)  frame counter
//	[52,..)  ciphertext up to the end of the first long frame
func Parse(telegram string) (Header, error) {
	if len(telegram) < minHeaderLength {
		return Header{}, fmt.Errorf("%w: %d characters, need at least %d", ErrMalformedTelegram, len(telegram), minHeaderLength)
	}

	frameLength, err := strconv.ParseUint(telegram[2:4], 16, 8)
	if err != nil {
		return Header{}, fmt.Errorf("%w: frame length %q: %v", ErrMalformedTelegram, telegram[2:4], err)
	}

	end := 8 + int(frameLength)*2
	if end > len(telegram) {
		end = len(telegram)
	}
	ciphertext := ""
	if end > minHeaderLength {
		ciphertext = telegram[minHeaderLength:end]
	}

	return Header{
		Start:        telegram[0:8],
		FrameLength:  int(frameLength),
		SystemTitle:  telegram[22:38],
		FrameCounter: telegram[44:52],
		Ciphertext:   ciphertext,
	}, nil
}

// Checksum computes the M-Bus long frame checksum over the frame starting at
// the beginning of the telegram and reports whether it matches the one sent.
func Checksum(telegram string) (byte, bool, error) {
	h, err := Parse(telegram)
	if err != nil {
		return 0, false, err
	}
	// Checksum covers C field through user data, and is followed by 0x16
	end := 8 + h.FrameLength*2
	if len(telegram) < end+2 {
		return 0, false, fmt.Errorf("%w: first frame truncated", ErrMalformedTelegram)
	}
	data, err := hex.DecodeString(telegram[8:end])
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", ErrMalformedTelegram, err)
	}
	sent, err := strconv.ParseUint(telegram[end:end+2], 16, 8)
	if err != nil {
		return 0, false, fmt.Errorf("%w: checksum: %v", ErrMalformedTelegram, err)
	}

	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum, sum == byte(sent), nil
}
