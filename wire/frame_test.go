package wire

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	payload := []byte(`{"type":"request","operation":"read"}`)
	if err := WriteFrame(&buf, payload); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	// length + payload + checksum
	if buf.Len() != 2+len(payload)+2 {
		t.Errorf("Frame length = %d, want %d", buf.Len(), 2+len(payload)+2)
	}

	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Payload = %q, want %q", got, payload)
	}
}

func TestFrameRoundTripEmpty(t *testing.T) {
	var buf bytes.Buffer

	if err := WriteFrame(&buf, nil); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Payload = % X, want empty", got)
	}
}

func TestReadFrameChecksumMismatch(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte("hello")); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	// Flip one payload bit; the CRC no longer matches
	raw := buf.Bytes()
	raw[3] ^= 0x01

	if _, err := ReadFrame(bytes.NewReader(raw)); !errors.Is(err, ErrChecksum) {
		t.Errorf("ReadFrame error = %v, want ErrChecksum", err)
	}
}

func TestReadFrameTruncated(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte("hello")); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	truncated := buf.Bytes()[:4]
	if _, err := ReadFrame(bytes.NewReader(truncated)); err == nil {
		t.Error("Expected error for truncated frame")
	}

	if _, err := ReadFrame(bytes.NewReader(nil)); err != io.EOF {
		t.Errorf("ReadFrame on empty stream = %v, want io.EOF", err)
	}
}

func TestReadFrameBackToBack(t *testing.T) {
	var buf bytes.Buffer
	first := []byte("first")
	second := []byte("second frame, longer")

	if err := WriteFrame(&buf, first); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
	if err := WriteFrame(&buf, second); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if !bytes.Equal(got, first) {
		t.Errorf("First payload = %q, want %q", got, first)
	}

	got, err = ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if !bytes.Equal(got, second) {
		t.Errorf("Second payload = %q, want %q", got, second)
	}
}

func TestWriteFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, make([]byte, MaxFramePayload+1)); err == nil {
		t.Error("Expected error for oversized payload")
	}
	if buf.Len() != 0 {
		t.Error("Oversized payload still wrote bytes")
	}
}
