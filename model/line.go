package model

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// MaxLineSize bounds one protocol line, terminator included.
const MaxLineSize = 64 * 1024

// ErrLineTooLong is returned for a line over the reader's limit. The line has
// been discarded and the reader is positioned at the start of the next one.
var ErrLineTooLong = fmt.Errorf("%w: line too long", ErrMessageDecode)

// LineReader splits a stream into '\n' terminated lines of bounded size.
type LineReader struct {
	r   *bufio.Reader
	max int
}

func NewLineReader(r io.Reader, max int) *LineReader {
	if max <= 0 {
		max = MaxLineSize
	}
	return &LineReader{r: bufio.NewReaderSize(r, 4096), max: max}
}

// ReadLine returns the next line without its terminator. A final line without
// '\n' is returned before io.EOF.
func (l *LineReader) ReadLine() ([]byte, error) {
	var line []byte
	for {
		chunk, err := l.r.ReadSlice('\n')
		if len(line)+len(chunk) > l.max {
			if errors.Is(err, bufio.ErrBufferFull) {
				err = l.discard()
			}
			if err != nil && !errors.Is(err, bufio.ErrBufferFull) {
				return nil, err
			}
			return nil, ErrLineTooLong
		}
		line = append(line, chunk...)
		switch {
		case err == nil:
			return TrimLine(line), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && len(line) > 0:
			return TrimLine(line), nil
		default:
			return nil, err
		}
	}
}

// discard skips to just past the next '\n'.
func (l *LineReader) discard() error {
	for {
		_, err := l.r.ReadSlice('\n')
		if !errors.Is(err, bufio.ErrBufferFull) {
			return err
		}
	}
}
