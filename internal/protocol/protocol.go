package protocol

import (
	"encoding/binary"
	"fmt"
)

const (
	// HeaderSize is the fixed datagram header length in bytes.
	HeaderSize = 4

	// sampleSize is the width of one float32 sample on the wire.
	sampleSize = 4

	// MinSampleRate and MaxSampleRate bound the advertised capture rate.
	MinSampleRate = 8000
	MaxSampleRate = 192000
)

// Datagram is one parsed capture datagram: a sample-rate header followed by
// raw interleaved little-endian float32 audio.
type Datagram struct {
	SampleRate int
	Audio      []byte
}

// ParseDatagram parses a capture datagram. The payload must contain at least
// one whole sample and be sample-aligned.
func ParseDatagram(data []byte) (*Datagram, error) {
	if len(data) < HeaderSize+sampleSize {
		return nil, fmt.Errorf("datagram too short: %d bytes, need at least %d",
			len(data), HeaderSize+sampleSize)
	}

	sampleRate := int(binary.LittleEndian.Uint32(data[:HeaderSize]))
	if sampleRate < MinSampleRate || sampleRate > MaxSampleRate {
		return nil, fmt.Errorf("sample rate out of range: %d Hz", sampleRate)
	}

	audio := data[HeaderSize:]
	if len(audio)%sampleSize != 0 {
		return nil, fmt.Errorf("audio payload not sample-aligned: %d bytes", len(audio))
	}

	return &Datagram{
		SampleRate: sampleRate,
		Audio:      audio,
	}, nil
}

// EncodeDatagram builds the wire form of a capture datagram.
func EncodeDatagram(sampleRate int, audio []byte) ([]byte, error) {
	if sampleRate < MinSampleRate || sampleRate > MaxSampleRate {
		return nil, fmt.Errorf("sample rate out of range: %d Hz", sampleRate)
	}

	if len(audio) == 0 || len(audio)%sampleSize != 0 {
		return nil, fmt.Errorf("audio payload must be a non-empty multiple of %d bytes, got %d",
			sampleSize, len(audio))
	}

	out := make([]byte, HeaderSize+len(audio))
	binary.LittleEndian.PutUint32(out[:HeaderSize], uint32(sampleRate))
	copy(out[HeaderSize:], audio)

	return out, nil
}
