package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/puyokura/housechat/model"
)

const writeWait = 10 * time.Second

// ErrSocketClosed marks the normal end of a connection. It wraps io.EOF.
var ErrSocketClosed = fmt.Errorf("socket closed: %w", io.EOF)

// lineConn is a line-oriented, full-duplex client transport.
// ReadLine is only called from one goroutine and WriteLine from another.
type lineConn interface {
	// ReadLine returns the next line without its terminator, or ErrSocketClosed at end of stream.
	// An oversized line is skipped and reported as model.ErrLineTooLong.
	ReadLine() ([]byte, error)
	// WriteLine writes one encoded line and flushes it.
	WriteLine(line []byte) error
	RemoteAddr() string
	Close() error
}

// tcpConn frames a TCP stream into newline-delimited lines.
type tcpConn struct {
	conn   net.Conn
	reader *model.LineReader
	writer *bufio.Writer
}

func newTCPConn(conn net.Conn) *tcpConn {
	return &tcpConn{
		conn:   conn,
		reader: model.NewLineReader(conn, model.MaxLineSize),
		writer: bufio.NewWriter(conn),
	}
}

func (c *tcpConn) ReadLine() ([]byte, error) {
	line, err := c.reader.ReadLine()
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return nil, ErrSocketClosed
	}
	return line, err
}

func (c *tcpConn) WriteLine(line []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if _, err := c.writer.Write(line); err != nil {
		return err
	}
	return c.writer.Flush()
}

func (c *tcpConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *tcpConn) Close() error {
	return c.conn.Close()
}
