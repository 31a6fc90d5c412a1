package calibration

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"

	"github.com/cespare/xxhash/v2"

	"radscan/internal/models"
)

// Persisted calibration records are self-describing little-endian
// binary files:
//
//	magic     uint32  "RSCA"
//	version   uint8   format version of the payload that follows
//	typeTag   string  type name the record was written as
//	paylen    uint32  payload length in bytes
//	payload   [...]   parameters, reference arrays, metadata
//	digest    uint64  xxhash64 of the payload
//
// The type tag exists because early records were written by a module
// whose calibration type lived in a package simply called
// "calibration"; such records are remapped to the current type on
// load. Strings are uint16-length-prefixed UTF-8.
const (
	fileMagic = 0x52534341 // "RSCA"

	// formatVersionLegacy marks records written before the module was
	// renamed; their payload layout is the same but they carry the old
	// type tag.
	formatVersionLegacy = 1

	// formatVersion is written by Save.
	formatVersion = 2

	typeTagCurrent = "radscan.Calibration"
	typeTagLegacy  = "calibration.Calibration"
)

// Errors distinguishing the failure modes of Load. Use errors.Is to
// test for them; the returned errors carry the offending path.
var (
	// ErrNotFound is returned when the calibration file does not exist.
	ErrNotFound = errors.New("calibration file not found")

	// ErrMalformed is returned when the file exists but its content is
	// truncated, has a bad magic number or fails the integrity check.
	ErrMalformed = errors.New("calibration file malformed")

	// ErrLegacyType is returned when the record's type tag is neither
	// the current type nor a known legacy type, so no translation to
	// the in-memory representation exists.
	ErrLegacyType = errors.New("calibration type tag not translatable")
)

// DefaultFilename returns the conventional file name for this
// calibration, derived from lot number and channel.
func (c *Calibration) DefaultFilename() string {
	return fmt.Sprintf("ebt_calibration_lot%s_%s.rsc", c.Lot, c.Channel)
}

// Save writes the calibration to path as a versioned binary record.
// An empty path selects DefaultFilename in the working directory.
func (c *Calibration) Save(path string) error {
	if path == "" {
		path = c.DefaultFilename()
	}

	payload := encodePayload(c)

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(fileMagic))
	buf.WriteByte(formatVersion)
	writeString(&buf, typeTagCurrent)
	binary.Write(&buf, binary.LittleEndian, uint32(len(payload)))
	buf.Write(payload)
	binary.Write(&buf, binary.LittleEndian, xxhash.Sum64(payload))

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write calibration file %s: %w", path, err)
	}
	return nil
}

// Load reads a calibration record from path. A missing file reports
// ErrNotFound; a damaged or truncated file reports ErrMalformed; an
// unknown type tag reports ErrLegacyType. Records written under the
// legacy type tag are remapped transparently.
func Load(path string) (*Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read calibration file %s: %v", path, err)
	}

	r := bytes.NewReader(data)

	var magic uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil || magic != fileMagic {
		return nil, fmt.Errorf("%w: %s: bad magic", ErrMalformed, path)
	}
	version, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: truncated header", ErrMalformed, path)
	}
	if version != formatVersion && version != formatVersionLegacy {
		return nil, fmt.Errorf("%w: %s: unsupported format version %d", ErrMalformed, path, version)
	}

	typeTag, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: truncated type tag", ErrMalformed, path)
	}
	switch typeTag {
	case typeTagCurrent:
	case typeTagLegacy:
		// Records from before the module rename; payload layout is
		// unchanged, only the tag differs.
	default:
		return nil, fmt.Errorf("%w: %s: unknown type tag %q", ErrLegacyType, path, typeTag)
	}

	var payLen uint32
	if err := binary.Read(r, binary.LittleEndian, &payLen); err != nil {
		return nil, fmt.Errorf("%w: %s: truncated header", ErrMalformed, path)
	}
	payload := make([]byte, payLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: %s: truncated payload", ErrMalformed, path)
	}

	var digest uint64
	if err := binary.Read(r, binary.LittleEndian, &digest); err != nil {
		return nil, fmt.Errorf("%w: %s: missing digest", ErrMalformed, path)
	}
	if digest != xxhash.Sum64(payload) {
		return nil, fmt.Errorf("%w: %s: digest mismatch", ErrMalformed, path)
	}

	c, err := decodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	return c, nil
}

// encodePayload serializes parameters, reference arrays and metadata.
func encodePayload(c *Calibration) []byte {
	var buf bytes.Buffer

	binary.Write(&buf, binary.LittleEndian, math.Float64bits(c.A))
	binary.Write(&buf, binary.LittleEndian, math.Float64bits(c.B))
	binary.Write(&buf, binary.LittleEndian, math.Float64bits(c.C))

	binary.Write(&buf, binary.LittleEndian, uint32(len(c.Doses)))
	for _, d := range c.Doses {
		binary.Write(&buf, binary.LittleEndian, math.Float64bits(d))
	}
	for _, n := range c.NetODs {
		binary.Write(&buf, binary.LittleEndian, math.Float64bits(n))
	}

	writeString(&buf, c.Lot)
	writeString(&buf, c.Date)
	buf.WriteByte(byte(c.Channel))

	return buf.Bytes()
}

// decodePayload is the inverse of encodePayload. It returns a plain
// error; Load wraps it as ErrMalformed.
func decodePayload(payload []byte) (*Calibration, error) {
	r := bytes.NewReader(payload)

	readFloat := func() (float64, error) {
		var bits uint64
		if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
			return 0, err
		}
		return math.Float64frombits(bits), nil
	}

	c := &Calibration{}
	var err error
	if c.A, err = readFloat(); err != nil {
		return nil, fmt.Errorf("truncated fit parameters")
	}
	if c.B, err = readFloat(); err != nil {
		return nil, fmt.Errorf("truncated fit parameters")
	}
	if c.C, err = readFloat(); err != nil {
		return nil, fmt.Errorf("truncated fit parameters")
	}

	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("truncated reference array length")
	}
	if int(n) > r.Len()/16 {
		return nil, fmt.Errorf("reference array length %d exceeds payload", n)
	}

	c.Doses = make([]float64, n)
	for i := range c.Doses {
		if c.Doses[i], err = readFloat(); err != nil {
			return nil, fmt.Errorf("truncated dose array")
		}
	}
	c.NetODs = make([]float64, n)
	for i := range c.NetODs {
		if c.NetODs[i], err = readFloat(); err != nil {
			return nil, fmt.Errorf("truncated NetOD array")
		}
	}

	if c.Lot, err = readString(r); err != nil {
		return nil, fmt.Errorf("truncated lot string")
	}
	if c.Date, err = readString(r); err != nil {
		return nil, fmt.Errorf("truncated date string")
	}
	ch, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("truncated channel byte")
	}
	c.Channel = models.Channel(ch)

	return c, nil
}

// writeString appends a uint16-length-prefixed string to buf.
func writeString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.LittleEndian, uint16(len(s)))
	buf.WriteString(s)
}

// readString reads a uint16-length-prefixed string.
func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
