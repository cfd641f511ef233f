package loader

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/exp/mmap"
)

type readCloser struct {
	io.Reader
	close func() error
}

func (r readCloser) Close() error {
	return r.close()
}

// openReader opens name for reading, decompressing .zst files on the fly.
// Plain files are memory mapped.
func openReader(name string) (io.ReadCloser, error) {
	if strings.HasSuffix(name, ".zst") {
		file, err := os.Open(name)
		if err != nil {
			return nil, fmt.Errorf("can`t open file: %w", err)
		}

		dec, err := zstd.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("can`t create zstd reader: %w", err)
		}

		return readCloser{Reader: dec, close: func() error {
			dec.Close()
			return file.Close()
		}}, nil
	}

	r, err := mmap.Open(name)
	if err != nil {
		return nil, fmt.Errorf("can`t open file: %w", err)
	}
	return readCloser{Reader: io.NewSectionReader(r, 0, int64(r.Len())), close: r.Close}, nil
}

func readFile(name string) ([]byte, error) {
	r, err := openReader(name)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}
