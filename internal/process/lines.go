package process

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"
)

const maxLineSize = 1024 * 1024

// splitLines is a bufio.SplitFunc that ends lines at either \n or \r.
// Progress bars redraw in place with \r, so each redraw becomes a line.
func splitLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// readLines sends every non-empty line of r to out until r is exhausted
// or stop is closed. A closed reader is a normal way to end.
func readLines(r io.Reader, out chan<- string, stop <-chan struct{}) error {
	defer close(out)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	sc.Split(splitLines)

	for sc.Scan() {
		line := string(bytes.TrimRight(sc.Bytes(), " \t"))
		if len(line) == 0 {
			continue
		}
		select {
		case out <- line:
		case <-stop:
			return nil
		}
	}

	if err := sc.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}
