package seal

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strconv"
)

// A seal trailer is appended after the document's last %%EOF:
//
//	%KLSEAL-1 <base64 DER CMS>
//	startxref
//	<offset of the original cross-reference section>
//	%%EOF
//
// The CMS signature covers every byte before the trailer. Repeating the
// original startxref keeps the file readable by PDF tools.
var (
	trailerMarker = []byte("\n%KLSEAL-1 ")
	startXRef     = []byte("startxref")
	eofMarker     = []byte("%%EOF")
)

type trailer struct {
	offset int // start of the marker; the signature covers content[:offset]
	end    int // first byte after the base64 line
	der    []byte
}

func appendTrailer(content, der []byte) []byte {
	var b bytes.Buffer
	b.Grow(len(content) + base64.StdEncoding.EncodedLen(len(der)) + 64)
	b.Write(content)
	b.Write(trailerMarker)
	b.WriteString(base64.StdEncoding.EncodeToString(der))
	b.WriteByte('\n')
	b.Write(trailerTail(content))
	return b.Bytes()
}

// trailerTail is what follows the base64 line of a trailer sealing signed.
func trailerTail(signed []byte) []byte {
	var b bytes.Buffer
	if offset, ok := lastStartXRef(signed); ok {
		b.Write(startXRef)
		b.WriteByte('\n')
		b.WriteString(strconv.FormatInt(offset, 10))
		b.WriteByte('\n')
	}
	b.Write(eofMarker)
	b.WriteByte('\n')
	return b.Bytes()
}

// unsignedTail reports whether the bytes after the outermost trailer differ
// from the tail appendTrailer wrote. Inner trailers are covered by the
// signatures that follow them.
func unsignedTail(content []byte, trailers []trailer) bool {
	if len(trailers) == 0 {
		return false
	}
	outer := trailers[len(trailers)-1]
	return !bytes.Equal(content[outer.end:], trailerTail(content[:outer.offset]))
}

// findTrailers returns the seal trailers in content, innermost first.
func findTrailers(content []byte) ([]trailer, error) {
	var out []trailer
	search := 0
	for {
		idx := bytes.Index(content[search:], trailerMarker)
		if idx < 0 {
			return out, nil
		}
		start := search + idx
		body := content[start+len(trailerMarker):]
		end := bytes.IndexByte(body, '\n')
		if end < 0 {
			return nil, errors.New("truncated seal trailer")
		}
		der, err := base64.StdEncoding.DecodeString(string(body[:end]))
		if err != nil {
			return nil, errors.New("malformed seal trailer")
		}
		out = append(out, trailer{offset: start, end: start + len(trailerMarker) + end + 1, der: der})
		search = start + len(trailerMarker) + end
	}
}

func lastStartXRef(content []byte) (int64, bool) {
	idx := bytes.LastIndex(content, startXRef)
	if idx < 0 {
		return 0, false
	}
	fields := bytes.Fields(content[idx+len(startXRef):])
	if len(fields) == 0 {
		return 0, false
	}
	offset, err := strconv.ParseInt(string(fields[0]), 10, 64)
	if err != nil {
		return 0, false
	}
	return offset, true
}
