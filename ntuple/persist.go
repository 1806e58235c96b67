package ntuple

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
)

// Weight file format, little-endian:
//
//	uint32              table count
//	per table: uint64   entry count
//	           float32  entries, in table order
//
// Weights are held as float64 but stored as float32, so a save and load round trip is
// deliberately lossy: the tables have always been single precision on disk.

// ErrLayoutMismatch is returned when a weight file does not fit the network's tables.
var ErrLayoutMismatch = errors.New("weight file does not match network layout")

const chunkSize = 1 << 16

// Save writes every table to w.
func (net *Network) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(net.tables))); err != nil {
		return fmt.Errorf("write table count: %w", err)
	}

	chunk := make([]float32, 0, chunkSize)
	for i, table := range net.tables {
		if err := binary.Write(bw, binary.LittleEndian, uint64(table.Len())); err != nil {
			return fmt.Errorf("write table %d size: %w", i, err)
		}
		for start := 0; start < table.Len(); start += chunkSize {
			end := min(start+chunkSize, table.Len())
			chunk = chunk[:0]
			for code := start; code < end; code++ {
				chunk = append(chunk, float32(table.At(uint32(code))))
			}
			if err := binary.Write(bw, binary.LittleEndian, chunk); err != nil {
				return fmt.Errorf("write table %d: %w", i, err)
			}
		}
	}
	return bw.Flush()
}

// Load replaces every table's weights with those read from r. The file must hold exactly the
// network's tables, in order and with the same sizes.
func (net *Network) Load(r io.Reader) error {
	br := bufio.NewReader(r)
	var count uint32
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return fmt.Errorf("read table count: %w", err)
	}
	if int(count) != len(net.tables) {
		return fmt.Errorf("%w: %d tables in file, %d in layout %q",
			ErrLayoutMismatch, count, len(net.tables), net.layout.Name)
	}

	chunk := make([]float32, chunkSize)
	for i, table := range net.tables {
		var size uint64
		if err := binary.Read(br, binary.LittleEndian, &size); err != nil {
			return fmt.Errorf("read table %d size: %w", i, err)
		}
		if size != uint64(table.Len()) {
			return fmt.Errorf("%w: table %d has %d entries in file, %d in layout",
				ErrLayoutMismatch, i, size, table.Len())
		}
		for start := 0; start < table.Len(); start += chunkSize {
			end := min(start+chunkSize, table.Len())
			buf := chunk[:end-start]
			if err := binary.Read(br, binary.LittleEndian, buf); err != nil {
				return fmt.Errorf("read table %d: %w", i, err)
			}
			for j, w := range buf {
				table.weights[start+j].AtomicSet(float64(w))
			}
		}
	}
	return nil
}

// SaveFile writes the weights to path, replacing any existing file.
func (net *Network) SaveFile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create weight file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if err = net.Save(f); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	log.Info().Str("path", path).Int("tables", len(net.tables)).Msg("saved weights")
	return nil
}

// LoadFile reads the weights from path.
func (net *Network) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open weight file: %w", err)
	}
	defer f.Close()

	if err = net.Load(f); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	log.Info().Str("path", path).Int("tables", len(net.tables)).Msg("loaded weights")
	return nil
}
