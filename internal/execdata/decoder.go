package execdata

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/maciekjanusz/covlink/internal/logger"
)

// Block tags and framing constants of the execution data stream.
const (
	BlockHeader        byte = 0x01
	BlockSessionInfo   byte = 0x10
	BlockExecutionData byte = 0x11

	MagicNumber   uint16 = 0xC0C0
	FormatVersion uint16 = 0x1007
)

// SessionInfo describes one recorded session.
type SessionInfo struct {
	ID    string
	Start int64
	Dump  int64
}

// Data is the decoded result of one execution data file: the merged
// aggregate across all sessions plus each session's isolated store.
type Data struct {
	Merged   *Store
	Sessions map[string]*Store
	Infos    []SessionInfo

	// Present reports whether an execution data file was actually read.
	Present bool
}

// NewData creates an empty decode result.
func NewData() *Data {
	return &Data{
		Merged:   NewStore(),
		Sessions: make(map[string]*Store),
	}
}

// Decode reads the execution data file at path. An empty path or a path
// that is not a regular file means no coverage was recorded: an
// informational notice is logged and an empty result is returned. A
// truncated or corrupt stream degrades to the records decoded up to the
// corruption, with a warning.
func Decode(path string) *Data {
	data := NewData()

	if path == "" {
		logger.Info("[ExecData] No execution data file configured, project coverage is set to 0%%")
		return data
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		logger.Info("[ExecData] Execution data file %s not found, project coverage is set to 0%%", path)
		return data
	}

	file, err := os.Open(path)
	if err != nil {
		logger.Warn("[ExecData] Cannot open execution data file %s: %v", path, err)
		return data
	}
	defer file.Close()

	data.Present = true
	if err := decodeStream(bufio.NewReader(file), data); err != nil && err != io.EOF {
		logger.Warn("[ExecData] Invalid execution data in %s: %v", path, err)
	}
	return data
}

// decodeStream reads blocks until EOF. Records are attributed to the
// most recently seen session and always merged into the aggregate.
func decodeStream(r *bufio.Reader, data *Data) error {
	session := ""
	for {
		tag, err := r.ReadByte()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		switch tag {
		case BlockHeader:
			if err := readHeader(r); err != nil {
				return err
			}
		case BlockSessionInfo:
			info, err := readSessionInfo(r)
			if err != nil {
				return err
			}
			session = info.ID
			data.Infos = append(data.Infos, info)
			if _, ok := data.Sessions[session]; !ok {
				data.Sessions[session] = NewStore()
			}
		case BlockExecutionData:
			record, err := readRecord(r)
			if err != nil {
				return err
			}
			data.Merged.Put(record)
			if session != "" {
				data.Sessions[session].Put(record)
			}
		default:
			return fmt.Errorf("unknown block type 0x%02x", tag)
		}
	}
}

func readHeader(r *bufio.Reader) error {
	magic, err := readUint16(r)
	if err != nil {
		return err
	}
	if magic != MagicNumber {
		return fmt.Errorf("invalid magic number 0x%04x", magic)
	}
	version, err := readUint16(r)
	if err != nil {
		return err
	}
	if version != FormatVersion {
		return fmt.Errorf("unsupported format version 0x%04x", version)
	}
	return nil
}

func readSessionInfo(r *bufio.Reader) (SessionInfo, error) {
	id, err := readUTF(r)
	if err != nil {
		return SessionInfo{}, err
	}
	start, err := readInt64(r)
	if err != nil {
		return SessionInfo{}, err
	}
	dump, err := readInt64(r)
	if err != nil {
		return SessionInfo{}, err
	}
	return SessionInfo{ID: id, Start: start, Dump: dump}, nil
}

func readRecord(r *bufio.Reader) (*Record, error) {
	id, err := readInt64(r)
	if err != nil {
		return nil, err
	}
	name, err := readUTF(r)
	if err != nil {
		return nil, err
	}
	probes, err := readBooleanArray(r)
	if err != nil {
		return nil, err
	}
	return &Record{ID: id, Name: name, Probes: probes}, nil
}

func readUint16(r *bufio.Reader) (uint16, error) {
	var v uint16
	err := binary.Read(r, binary.BigEndian, &v)
	return v, err
}

func readInt64(r *bufio.Reader) (int64, error) {
	var v int64
	err := binary.Read(r, binary.BigEndian, &v)
	return v, err
}

// readUTF reads a length-prefixed UTF-8 string.
func readUTF(r *bufio.Reader) (string, error) {
	length, err := readUint16(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// readVarInt reads an int in 7-bit groups, low group first, with the
// high bit of each byte marking continuation.
func readVarInt(r *bufio.Reader) (int, error) {
	result := 0
	for shift := 0; ; shift += 7 {
		if shift > 28 {
			return 0, fmt.Errorf("malformed variable-length integer")
		}
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= int(b&0x7F) << shift
		if b&0x80 == 0 {
			return result, nil
		}
	}
}

// readBooleanArray reads a varint count followed by the probe bits
// packed eight to a byte, lowest bit first.
func readBooleanArray(r *bufio.Reader) ([]bool, error) {
	count, err := readVarInt(r)
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("negative probe count %d", count)
	}
	probes := make([]bool, count)
	var buf byte
	for i := 0; i < count; i++ {
		if i%8 == 0 {
			buf, err = r.ReadByte()
			if err != nil {
				return nil, err
			}
		}
		probes[i] = buf&(1<<(i%8)) != 0
	}
	return probes, nil
}
