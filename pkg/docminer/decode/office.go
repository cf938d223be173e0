package decode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf16"

	"github.com/richardlehane/mscfb"
	"golang.org/x/net/html/charset"
)

// Word 97-2003 binary layout.
const (
	wordIdent       = 0xA5EC
	fibFlagsOffset  = 0x000A
	fibFcClxOffset  = 0x01A2
	fibLcbClxOffset = 0x01A6

	flagEncrypted = 0x0100
	flagWhichTbl  = 0x0200

	clxPrc  = 0x01
	clxPcdt = 0x02

	fcCompressed = 0x40000000
	pcdSize      = 8
)

var errNotWordDocument = errors.New("not a Word 97-2003 document")

// Word97 decodes a legacy .doc file: the CFB container is opened with mscfb and
// the text is reassembled from the piece table of the WordDocument stream.
func Word97(raw []byte) (string, error) {
	doc, err := mscfb.New(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("doc: %w", err)
	}

	streams := make(map[string][]byte, 3)
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		switch entry.Name {
		case "WordDocument", "0Table", "1Table":
			data, rerr := io.ReadAll(entry)
			if rerr != nil {
				return "", fmt.Errorf("doc: read %s: %w", entry.Name, rerr)
			}
			streams[entry.Name] = data
		}
	}

	return wordText(streams["WordDocument"], streams["0Table"], streams["1Table"])
}

// wordText walks the piece table found through the FIB of the WordDocument stream.
func wordText(wordDoc, table0, table1 []byte) (string, error) {
	if len(wordDoc) < fibLcbClxOffset+4 {
		return "", fmt.Errorf("doc: %w: WordDocument stream too short", errNotWordDocument)
	}
	if binary.LittleEndian.Uint16(wordDoc) != wordIdent {
		return "", fmt.Errorf("doc: %w: bad FIB identifier", errNotWordDocument)
	}

	flags := binary.LittleEndian.Uint16(wordDoc[fibFlagsOffset:])
	if flags&flagEncrypted != 0 {
		return "", errors.New("doc: document is encrypted")
	}
	table := table0
	if flags&flagWhichTbl != 0 {
		table = table1
	}
	if table == nil {
		return "", errors.New("doc: table stream missing")
	}

	fcClx := binary.LittleEndian.Uint32(wordDoc[fibFcClxOffset:])
	lcbClx := binary.LittleEndian.Uint32(wordDoc[fibLcbClxOffset:])
	if uint64(fcClx)+uint64(lcbClx) > uint64(len(table)) {
		return "", errors.New("doc: piece table out of range")
	}
	plc, err := findPlcPcd(table[fcClx : fcClx+lcbClx])
	if err != nil {
		return "", err
	}

	// PlcPcd: n+1 character positions followed by n 8-byte piece descriptors.
	if len(plc) < 4 || (len(plc)-4)%(4+pcdSize) != 0 {
		return "", errors.New("doc: malformed piece table")
	}
	n := (len(plc) - 4) / (4 + pcdSize)

	var b strings.Builder
	for i := 0; i < n; i++ {
		cpStart := binary.LittleEndian.Uint32(plc[i*4:])
		cpEnd := binary.LittleEndian.Uint32(plc[(i+1)*4:])
		if cpEnd < cpStart {
			return "", errors.New("doc: piece table positions out of order")
		}
		chars := int(cpEnd - cpStart)

		pcd := plc[(n+1)*4+i*pcdSize:]
		fc := binary.LittleEndian.Uint32(pcd[2:])

		piece, err := pieceText(wordDoc, fc, chars)
		if err != nil {
			return "", fmt.Errorf("doc: piece %d: %w", i, err)
		}
		b.WriteString(piece)
	}

	return cleanWordText(b.String()), nil
}

// findPlcPcd skips the Prc entries of a Clx and returns the PlcPcd of its Pcdt.
func findPlcPcd(clx []byte) ([]byte, error) {
	for len(clx) > 0 {
		switch clx[0] {
		case clxPrc:
			if len(clx) < 3 {
				return nil, errors.New("doc: truncated Prc")
			}
			size := int(int16(binary.LittleEndian.Uint16(clx[1:])))
			if size < 0 || 3+size > len(clx) {
				return nil, errors.New("doc: malformed Prc")
			}
			clx = clx[3+size:]
		case clxPcdt:
			if len(clx) < 5 {
				return nil, errors.New("doc: truncated Pcdt")
			}
			lcb := binary.LittleEndian.Uint32(clx[1:])
			if uint64(lcb) > uint64(len(clx)-5) {
				return nil, errors.New("doc: Pcdt out of range")
			}
			return clx[5 : 5+lcb], nil
		default:
			return nil, fmt.Errorf("doc: unexpected clx entry 0x%02x", clx[0])
		}
	}
	return nil, errors.New("doc: Pcdt missing")
}

func pieceText(wordDoc []byte, fc uint32, chars int) (string, error) {
	if fc&fcCompressed != 0 {
		start := int((fc &^ fcCompressed) / 2)
		if start+chars > len(wordDoc) {
			return "", errors.New("compressed piece out of range")
		}
		return decodeCP1252(wordDoc[start : start+chars])
	}

	start := int(fc)
	if start+2*chars > len(wordDoc) {
		return "", errors.New("unicode piece out of range")
	}
	units := make([]uint16, chars)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(wordDoc[start+2*i:])
	}
	return string(utf16.Decode(units)), nil
}

func decodeCP1252(b []byte) (string, error) {
	enc, _ := charset.Lookup("windows-1252")
	if enc == nil {
		return "", errors.New("windows-1252 decoder unavailable")
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// cleanWordText maps Word control characters to plain text and drops field codes,
// keeping field results.
func cleanWordText(s string) string {
	var b strings.Builder
	var fields []bool // per open field: still in its code part
	inCode := 0
	for _, r := range s {
		switch r {
		case 0x13: // field begin
			fields = append(fields, true)
			inCode++
		case 0x14: // field separator
			if n := len(fields); n > 0 && fields[n-1] {
				fields[n-1] = false
				inCode--
			}
		case 0x15: // field end
			if n := len(fields); n > 0 {
				if fields[n-1] {
					inCode--
				}
				fields = fields[:n-1]
			}
		case '\r', 0x0B, 0x0C:
			if inCode == 0 {
				b.WriteByte('\n')
			}
		case 0x07:
			if inCode == 0 {
				b.WriteByte('\t')
			}
		default:
			if inCode == 0 && (r >= 0x20 || r == '\t' || r == '\n') {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}
