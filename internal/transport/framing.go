package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	chunkMagic          uint32 = 0xDEADBEEF
	chunkHeaderSize            = 12
	defaultMaxChunkSize        = 244
	maxChunkCount              = 65534
	escapeByte          byte   = 0x1B
)

var disconnectService = append([]byte{escapeByte}, []byte("disconnect")...)

// ErrFrameTooLarge is returned when a frame needs more than 65534 chunks to
// transmit.
var ErrFrameTooLarge = errors.New("transport: frame exceeds max chunk count")

// chunkHeader is the 12-byte prefix of every chunk.
type chunkHeader struct {
	index     uint16 // 1-based
	count     uint16
	messageID uint32
}

func (h chunkHeader) encode() []byte {
	buf := make([]byte, chunkHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], chunkMagic)
	binary.LittleEndian.PutUint16(buf[4:6], h.index)
	binary.LittleEndian.PutUint16(buf[6:8], h.count)
	binary.LittleEndian.PutUint32(buf[8:12], h.messageID)
	return buf
}

func decodeChunkHeader(buf []byte) (chunkHeader, error) {
	if len(buf) < chunkHeaderSize {
		return chunkHeader{}, fmt.Errorf("transport: chunk shorter than header (%d bytes)", len(buf))
	}
	magic := binary.LittleEndian.Uint32(buf[0:4])
	if magic != chunkMagic {
		return chunkHeader{}, fmt.Errorf("transport: bad chunk magic %#x", magic)
	}
	return chunkHeader{
		index:     binary.LittleEndian.Uint16(buf[4:6]),
		count:     binary.LittleEndian.Uint16(buf[6:8]),
		messageID: binary.LittleEndian.Uint32(buf[8:12]),
	}, nil
}

// shield doubles a leading escape byte so a genuine application frame that
// happens to start with 0x1B cannot be confused with a service frame.
func shield(frame []byte) []byte {
	if len(frame) == 0 || frame[0] != escapeByte {
		return frame
	}
	out := make([]byte, len(frame)+1)
	out[0] = escapeByte
	copy(out[1:], frame)
	return out
}

// unshield reverses shield: a frame starting with a doubled escape byte has
// its first byte stripped.
func unshield(frame []byte) []byte {
	if len(frame) >= 2 && frame[0] == escapeByte && frame[1] == escapeByte {
		return frame[1:]
	}
	return frame
}

func isDisconnectService(frame []byte) bool {
	if len(frame) != len(disconnectService) {
		return false
	}
	for i, b := range disconnectService {
		if frame[i] != b {
			return false
		}
	}
	return true
}

// splitChunks divides frame into ≤maxPayload-byte chunks, each carrying the
// 12-byte header, numbering chunks 1..count. *globalID is the per-connection
// chunk counter; it is advanced once per chunk (nextMessageID).
func splitChunks(frame []byte, maxPayload int, globalID *uint32) ([][]byte, error) {
	shielded := shield(frame)
	n := len(shielded)
	count := (n + maxPayload - 1) / maxPayload
	if count == 0 {
		count = 1
	}
	if count > maxChunkCount {
		return nil, ErrFrameTooLarge
	}

	chunks := make([][]byte, count)
	for i := 0; i < count; i++ {
		start := i * maxPayload
		end := start + maxPayload
		if end > n {
			end = n
		}
		*globalID = nextMessageID(*globalID)
		h := chunkHeader{index: uint16(i + 1), count: uint16(count), messageID: *globalID}
		chunks[i] = append(h.encode(), shielded[start:end]...)
	}
	return chunks, nil
}

// chunkReassembler accumulates chunks for one connection. messageID is a
// single counter that increments once per chunk across the entire stream,
// not per message: it exists purely to let the receiver notice a
// dropped or corrupted chunk anywhere in the stream, independent of the
// chunk-index/chunk-count bookkeeping that groups chunks into messages.
type chunkReassembler struct {
	haveGlobalID bool
	globalID     uint32

	count   uint16
	next    uint16
	payload []byte
}

func newChunkReassembler() *chunkReassembler {
	return &chunkReassembler{}
}

// feed consumes one chunk. It returns (frame, true, nil) once the final
// chunk of a message completes it, or (nil, false, err) on a protocol
// violation (magic mismatch, global id discontinuity, or chunk-index
// discontinuity within the current message).
func (r *chunkReassembler) feed(raw []byte) ([]byte, bool, error) {
	h, err := decodeChunkHeader(raw)
	if err != nil {
		return nil, false, err
	}
	body := raw[chunkHeaderSize:]

	if !r.haveGlobalID {
		r.globalID = h.messageID
		r.haveGlobalID = true
	} else {
		want := nextMessageID(r.globalID)
		if want != h.messageID {
			r.globalID = h.messageID
			return nil, false, fmt.Errorf("transport: chunk stream id discontinuity: expected %d, got %d", want, h.messageID)
		}
		r.globalID = h.messageID
	}

	if r.next == 0 {
		if h.index != 1 {
			return nil, false, fmt.Errorf("transport: expected first chunk index 1, got %d", h.index)
		}
		r.count = h.count
		r.next = 1
		r.payload = r.payload[:0]
	} else {
		if h.index != r.next+1 {
			return nil, false, fmt.Errorf("transport: chunk index discontinuity: expected %d, got %d", r.next+1, h.index)
		}
	}

	r.payload = append(r.payload, body...)
	r.next = h.index

	if r.next == r.count {
		frame := unshield(r.payload)
		r.next = 0
		r.payload = nil
		return frame, true, nil
	}
	return nil, false, nil
}

// nextMessageID advances the non-wrapping message id counter used by the
// chunked backend. The counter advances once per chunk sent, not once per
// logical frame, and a wrap skips the reserved value 0.
func nextMessageID(id uint32) uint32 {
	id++
	if id == 0 {
		id = 1
	}
	return id
}
