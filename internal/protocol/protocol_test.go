package protocol

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestEncodeParseRoundTrip(t *testing.T) {
	audio := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	data, err := EncodeDatagram(44100, audio)
	if err != nil {
		t.Fatalf("EncodeDatagram failed: %v", err)
	}

	if len(data) != HeaderSize+len(audio) {
		t.Errorf("Expected %d bytes, got %d", HeaderSize+len(audio), len(data))
	}

	parsed, err := ParseDatagram(data)
	if err != nil {
		t.Fatalf("ParseDatagram failed: %v", err)
	}

	if parsed.SampleRate != 44100 {
		t.Errorf("Expected sample rate 44100, got %d", parsed.SampleRate)
	}

	if !bytes.Equal(parsed.Audio, audio) {
		t.Errorf("Audio payload mismatch: expected % x, got % x", audio, parsed.Audio)
	}
}

func TestParseDatagramTooShort(t *testing.T) {
	if _, err := ParseDatagram([]byte{1, 2, 3}); err == nil {
		t.Error("Expected error for datagram shorter than header")
	}

	// Header only, no audio
	header := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(header, 16000)
	if _, err := ParseDatagram(header); err == nil {
		t.Error("Expected error for datagram without audio payload")
	}
}

func TestParseDatagramSampleRateBounds(t *testing.T) {
	audio := []byte{1, 2, 3, 4}

	data := make([]byte, HeaderSize+len(audio))
	binary.LittleEndian.PutUint32(data, 4000) // below minimum
	copy(data[HeaderSize:], audio)

	if _, err := ParseDatagram(data); err == nil {
		t.Error("Expected error for sample rate below minimum")
	}

	binary.LittleEndian.PutUint32(data, 500000) // above maximum
	if _, err := ParseDatagram(data); err == nil {
		t.Error("Expected error for sample rate above maximum")
	}
}

func TestParseDatagramMisalignedPayload(t *testing.T) {
	data := make([]byte, HeaderSize+6) // 6 bytes is not sample-aligned
	binary.LittleEndian.PutUint32(data, 16000)

	if _, err := ParseDatagram(data); err == nil {
		t.Error("Expected error for misaligned audio payload")
	}
}

func TestEncodeDatagramValidation(t *testing.T) {
	if _, err := EncodeDatagram(16000, nil); err == nil {
		t.Error("Expected error for empty audio payload")
	}

	if _, err := EncodeDatagram(16000, []byte{1, 2, 3}); err == nil {
		t.Error("Expected error for misaligned audio payload")
	}

	if _, err := EncodeDatagram(100, []byte{1, 2, 3, 4}); err == nil {
		t.Error("Expected error for out-of-range sample rate")
	}
}
