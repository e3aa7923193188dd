// Package buffer provides a temporary file backed sink for the output of a
// child process.
//
// A Buffer can be handed to the child directly as its stdout or stderr, so
// arbitrarily large outputs never have to be held in memory. The backing
// file is unlinked on Close.
package buffer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

var ErrClosed = errors.New("buffer closed")

type Buffer struct {
	mx     sync.Mutex
	f      *os.File
	size   int64
	closed bool
}

// New creates an empty Buffer in dir. Empty dir means os.TempDir.
func New(dir string) (*Buffer, error) {
	f, err := os.CreateTemp(dir, "email-output-*")
	if err != nil {
		return nil, fmt.Errorf("creating buffer: %w", err)
	}
	return &Buffer{f: f}, nil
}

// File returns the backing file, suitable for exec.Cmd Stdout/Stderr.
// Bytes written by a child directly to the file are accounted for by Sync.
func (b *Buffer) File() *os.File {
	return b.f
}

// Write appends p to the buffer.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.closed {
		return 0, ErrClosed
	}
	n, err := b.f.WriteAt(p, b.size)
	b.size += int64(n)
	return n, err
}

// Sync refreshes the size after an external writer (a child process) used
// the file descriptor.
func (b *Buffer) Sync() error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.closed {
		return ErrClosed
	}
	info, err := b.f.Stat()
	if err != nil {
		return fmt.Errorf("stat buffer: %w", err)
	}
	b.size = info.Size()
	return nil
}

func (b *Buffer) Len() int64 {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.size
}

func (b *Buffer) NonEmpty() bool {
	return b.Len() > 0
}

// Bytes reads the whole content.
func (b *Buffer) Bytes() ([]byte, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	ret := make([]byte, b.size)
	_, err := b.f.ReadAt(ret, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reading buffer: %w", err)
	}
	return ret, nil
}

// WriteTo copies the whole content to w, it does not consume the buffer.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.closed {
		return 0, ErrClosed
	}
	return io.Copy(w, io.NewSectionReader(b.f, 0, b.size))
}

// Close releases the file and removes it. It is safe to call more than once.
func (b *Buffer) Close() error {
	if b == nil {
		return nil
	}
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return errors.Join(b.f.Close(), os.Remove(b.f.Name()))
}
