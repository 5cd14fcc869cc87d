package transport

import (
	"bytes"
	"testing"
)

func TestShieldUnshieldRoundTrip(t *testing.T) {
	plain := []byte("hello")
	if !bytes.Equal(shield(plain), plain) {
		t.Fatal("expected non-escape-prefixed frame to pass through unshielded")
	}

	escaped := []byte{escapeByte, 'x', 'y'}
	shielded := shield(escaped)
	if len(shielded) != len(escaped)+1 || shielded[0] != escapeByte || shielded[1] != escapeByte {
		t.Fatalf("expected doubled escape byte, got %v", shielded)
	}
	if !bytes.Equal(unshield(shielded), escaped) {
		t.Fatalf("expected unshield to recover original, got %v", unshield(shielded))
	}
}

func TestIsDisconnectService(t *testing.T) {
	if !isDisconnectService(disconnectService) {
		t.Fatal("expected the canonical disconnect frame to be recognized")
	}
	if isDisconnectService([]byte("not it")) {
		t.Fatal("did not expect an arbitrary frame to be recognized as disconnect")
	}
}

func TestSplitAndReassembleSingleChunk(t *testing.T) {
	var id uint32
	frame := []byte("small payload")
	chunks, err := splitChunks(frame, defaultMaxChunkSize, &id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}

	r := newChunkReassembler()
	got, complete, err := r.feed(chunks[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !complete {
		t.Fatal("expected single chunk to complete the message")
	}
	if !bytes.Equal(got, frame) {
		t.Fatalf("expected %q, got %q", frame, got)
	}
}

func TestSplitAndReassembleMultiChunk(t *testing.T) {
	var id uint32
	frame := bytes.Repeat([]byte("0123456789"), 50) // 500 bytes, several chunks at 244
	chunks, err := splitChunks(frame, defaultMaxChunkSize, &id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks for a 500-byte frame, got %d", len(chunks))
	}

	r := newChunkReassembler()
	var got []byte
	var complete bool
	for i, c := range chunks {
		got, complete, err = r.feed(c)
		if err != nil {
			t.Fatalf("chunk %d: unexpected error: %v", i, err)
		}
		if i < len(chunks)-1 && complete {
			t.Fatalf("did not expect completion before the final chunk (at %d of %d)", i, len(chunks))
		}
	}
	if !complete {
		t.Fatal("expected the final chunk to complete the message")
	}
	if !bytes.Equal(got, frame) {
		t.Fatal("reassembled frame does not match original")
	}
}

func TestReassemblerRejectsIndexDiscontinuity(t *testing.T) {
	var id uint32
	frame := bytes.Repeat([]byte("x"), 500)
	chunks, _ := splitChunks(frame, defaultMaxChunkSize, &id)
	if len(chunks) < 3 {
		t.Fatal("test setup needs at least 3 chunks")
	}

	r := newChunkReassembler()
	if _, _, err := r.feed(chunks[0]); err != nil {
		t.Fatalf("unexpected error on first chunk: %v", err)
	}
	// skip chunk 1, feed chunk 2 directly: index discontinuity.
	if _, _, err := r.feed(chunks[2]); err == nil {
		t.Fatal("expected an error from a discontinuous chunk index")
	}
}

func TestSplitChunkCountMatchesPayloadCeiling(t *testing.T) {
	// An 80 kB frame at the default 244-byte payload splits into
	// ceil(80000/244) chunks with indices 1..N and count N.
	var id uint32
	frame := bytes.Repeat([]byte{0x42}, 80000)
	chunks, err := splitChunks(frame, defaultMaxChunkSize, &id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := (80000 + defaultMaxChunkSize - 1) / defaultMaxChunkSize
	if len(chunks) != want {
		t.Fatalf("expected %d chunks, got %d", want, len(chunks))
	}
	h, err := decodeChunkHeader(chunks[len(chunks)-1])
	if err != nil {
		t.Fatalf("unexpected error decoding final header: %v", err)
	}
	if int(h.index) != want || int(h.count) != want {
		t.Fatalf("expected final chunk index=count=%d, got index=%d count=%d", want, h.index, h.count)
	}
}

func TestDisconnectServiceChunkSurvivesReassembly(t *testing.T) {
	// The service frame is framed like any chunk but never shielded; the
	// reassembler must hand it back with its single leading escape intact.
	h := chunkHeader{index: 1, count: 1, messageID: 17}
	raw := append(h.encode(), disconnectService...)

	r := newChunkReassembler()
	frame, complete, err := r.feed(raw)
	if err != nil || !complete {
		t.Fatalf("expected a complete frame, got complete=%v err=%v", complete, err)
	}
	if !isDisconnectService(frame) {
		t.Fatalf("expected the reassembled frame to be the disconnect service frame, got %v", frame)
	}
}

func TestReassemblerRejectsBadMagic(t *testing.T) {
	bad := make([]byte, chunkHeaderSize+1)
	bad[0] = 0xAA // wrong magic byte
	r := newChunkReassembler()
	if _, _, err := r.feed(bad); err == nil {
		t.Fatal("expected an error from a bad magic number")
	}
}

func TestNextMessageIDSkipsZero(t *testing.T) {
	if got := nextMessageID(0); got != 1 {
		t.Fatalf("expected first id to be 1, got %d", got)
	}
	if got := nextMessageID(0xFFFFFFFF); got != 1 {
		t.Fatalf("expected wraparound to skip 0, got %d", got)
	}
}

func TestParseRpmsgURI(t *testing.T) {
	name, ep, err := parseRpmsgURI("rpmsg://board/3")
	if err != nil || name != "board" || ep != 3 {
		t.Fatalf("unexpected parse result: name=%q ep=%d err=%v", name, ep, err)
	}

	name, ep, err = parseRpmsgURI("rpmsg:///5")
	if err != nil || name != defaultRpmsgEndpointName || ep != 5 {
		t.Fatalf("expected default endpoint name, got name=%q ep=%d err=%v", name, ep, err)
	}
}
