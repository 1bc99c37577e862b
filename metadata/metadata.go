// Package metadata implements FileMetadata: the plaintext record that lives
// encrypted inside a metadata block's data, and the fixed MIME-detection
// table §4.6 specifies. Uses the same length-prefixed field codec as
// package block (both ultimately descend from the teacher's
// consensus/tx_marshal.go append style and consensus/wire_read.go bounds
// checking).
package metadata

import (
	"encoding/binary"
	"path/filepath"
	"strings"

	"github.com/mattneel/zault/zaulterr"
)

const CurrentVersion uint8 = 1

// FileMetadata is the plaintext record a metadata block's data decrypts to.
type FileMetadata struct {
	Version      uint8
	Filename     string
	Size         uint64
	MimeType     string
	Created      int64
	Modified     int64
	ContentHash  [32]byte
	ContentKey   [32]byte
	ContentNonce [12]byte
}

// Encode produces the fixed layout (§4.6):
// version(1) ‖ filename_len_le4 ‖ filename_bytes ‖ size_le8 ‖
// mime_len_le4 ‖ mime_bytes ‖ created_le8 ‖ modified_le8 ‖
// content_hash(32) ‖ content_key(32) ‖ content_nonce(12).
func (m *FileMetadata) Encode() []byte {
	filename := []byte(m.Filename)
	mime := []byte(m.MimeType)

	buf := make([]byte, 0, 1+4+len(filename)+8+4+len(mime)+8+8+32+32+12)
	buf = append(buf, m.Version)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(filename)))
	buf = append(buf, filename...)
	buf = binary.LittleEndian.AppendUint64(buf, m.Size)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(mime)))
	buf = append(buf, mime...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(m.Created))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(m.Modified))
	buf = append(buf, m.ContentHash[:]...)
	buf = append(buf, m.ContentKey[:]...)
	buf = append(buf, m.ContentNonce[:]...)
	return buf
}

// Decode parses a buffer produced by Encode, bounds-checking every length.
func Decode(buf []byte) (*FileMetadata, error) {
	const op = "metadata.Decode"
	pos := 0
	need := func(n int) error {
		if pos+n > len(buf) {
			return zaulterr.New(zaulterr.InvalidMetadata, op, "truncated metadata")
		}
		return nil
	}

	if err := need(1); err != nil {
		return nil, err
	}
	var m FileMetadata
	m.Version = buf[pos]
	pos++

	if err := need(4); err != nil {
		return nil, err
	}
	filenameLen := int(binary.LittleEndian.Uint32(buf[pos : pos+4]))
	pos += 4
	if filenameLen < 0 || filenameLen > len(buf) {
		return nil, zaulterr.New(zaulterr.InvalidMetadata, op, "invalid filename length")
	}
	if err := need(filenameLen); err != nil {
		return nil, err
	}
	m.Filename = string(buf[pos : pos+filenameLen])
	pos += filenameLen

	if err := need(8); err != nil {
		return nil, err
	}
	m.Size = binary.LittleEndian.Uint64(buf[pos : pos+8])
	pos += 8

	if err := need(4); err != nil {
		return nil, err
	}
	mimeLen := int(binary.LittleEndian.Uint32(buf[pos : pos+4]))
	pos += 4
	if mimeLen < 0 || mimeLen > len(buf) {
		return nil, zaulterr.New(zaulterr.InvalidMetadata, op, "invalid mime length")
	}
	if err := need(mimeLen); err != nil {
		return nil, err
	}
	m.MimeType = string(buf[pos : pos+mimeLen])
	pos += mimeLen

	if err := need(8); err != nil {
		return nil, err
	}
	m.Created = int64(binary.LittleEndian.Uint64(buf[pos : pos+8]))
	pos += 8

	if err := need(8); err != nil {
		return nil, err
	}
	m.Modified = int64(binary.LittleEndian.Uint64(buf[pos : pos+8]))
	pos += 8

	if err := need(32); err != nil {
		return nil, err
	}
	copy(m.ContentHash[:], buf[pos:pos+32])
	pos += 32

	if err := need(32); err != nil {
		return nil, err
	}
	copy(m.ContentKey[:], buf[pos:pos+32])
	pos += 32

	if err := need(12); err != nil {
		return nil, err
	}
	copy(m.ContentNonce[:], buf[pos:pos+12])
	pos += 12

	if pos != len(buf) {
		return nil, zaulterr.New(zaulterr.InvalidMetadata, op, "trailing bytes after metadata")
	}

	return &m, nil
}

// mimeTable is the fixed extension→MIME table §4.6 specifies.
var mimeTable = map[string]string{
	".txt":  "text/plain",
	".md":   "text/markdown",
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".zip":  "application/zip",
	".json": "application/json",
}

// DetectMIME maps a filename's extension to a MIME type via the fixed
// table, defaulting to application/octet-stream.
func DetectMIME(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if mime, ok := mimeTable[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}
