package player

import (
	"errors"
	"io"
)

// loopReader replays a seekable source forever by rewinding it on EOF.
type loopReader struct {
	// src is the rewound source.
	src io.ReadSeeker
	// empty is set when the last rewind produced no bytes.
	empty bool
}

// NewLoopReader returns a reader that rewinds src to the start each time it
// is exhausted. A source that yields nothing after a rewind ends with io.EOF.
func NewLoopReader(src io.ReadSeeker) io.Reader {
	return &loopReader{src: src}
}

// Read implements io.Reader.
func (r *loopReader) Read(buf []byte) (int, error) {
	n, err := r.src.Read(buf)
	if n > 0 {
		r.empty = false
	}

	if !errors.Is(err, io.EOF) {
		return n, err
	}

	if n == 0 && r.empty {
		return 0, io.EOF
	}

	if _, seekErr := r.src.Seek(0, io.SeekStart); seekErr != nil {
		return n, seekErr
	}

	if n == 0 {
		r.empty = true
	}

	return n, nil
}
