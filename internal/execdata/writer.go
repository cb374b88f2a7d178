package execdata

import (
	"encoding/binary"
	"io"
)

// Writer serializes session infos and execution records into the
// block-framed stream format read by Decode.
type Writer struct {
	w io.Writer
}

// NewWriter creates a Writer and emits the stream header.
func NewWriter(w io.Writer) (*Writer, error) {
	ew := &Writer{w: w}
	if err := ew.writeByte(BlockHeader); err != nil {
		return nil, err
	}
	if err := binary.Write(w, binary.BigEndian, MagicNumber); err != nil {
		return nil, err
	}
	if err := binary.Write(w, binary.BigEndian, FormatVersion); err != nil {
		return nil, err
	}
	return ew, nil
}

// WriteSessionInfo emits a session info block. Records written after it
// belong to this session until the next session info block.
func (ew *Writer) WriteSessionInfo(info SessionInfo) error {
	if err := ew.writeByte(BlockSessionInfo); err != nil {
		return err
	}
	if err := ew.writeUTF(info.ID); err != nil {
		return err
	}
	if err := binary.Write(ew.w, binary.BigEndian, info.Start); err != nil {
		return err
	}
	return binary.Write(ew.w, binary.BigEndian, info.Dump)
}

// WriteRecord emits an execution data block.
func (ew *Writer) WriteRecord(r *Record) error {
	if err := ew.writeByte(BlockExecutionData); err != nil {
		return err
	}
	if err := binary.Write(ew.w, binary.BigEndian, r.ID); err != nil {
		return err
	}
	if err := ew.writeUTF(r.Name); err != nil {
		return err
	}
	return ew.writeBooleanArray(r.Probes)
}

func (ew *Writer) writeByte(b byte) error {
	_, err := ew.w.Write([]byte{b})
	return err
}

func (ew *Writer) writeUTF(s string) error {
	if err := binary.Write(ew.w, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(ew.w, s)
	return err
}

func (ew *Writer) writeVarInt(v int) error {
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v == 0 {
			return ew.writeByte(b)
		}
		if err := ew.writeByte(b | 0x80); err != nil {
			return err
		}
	}
}

func (ew *Writer) writeBooleanArray(probes []bool) error {
	if err := ew.writeVarInt(len(probes)); err != nil {
		return err
	}
	var buf byte
	for i, hit := range probes {
		if hit {
			buf |= 1 << (i % 8)
		}
		if i%8 == 7 {
			if err := ew.writeByte(buf); err != nil {
				return err
			}
			buf = 0
		}
	}
	if len(probes)%8 != 0 {
		return ew.writeByte(buf)
	}
	return nil
}
