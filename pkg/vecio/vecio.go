// Package vecio reads the fvecs, ivecs and bvecs dataset formats used by
// the standard ANN benchmark collections (SIFT, GIST).
//
// Each record is a little-endian int32 dimension followed by the
// payload: dim float32 values (fvecs), dim int32 values (ivecs, used for
// ground-truth files), or dim bytes (bvecs). Every record in a file
// carries the same dimension, and for the 4-byte payloads the file size
// must divide evenly by (dim+1)*4.
package vecio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/fadhilkurnia/sedann/pkg/vecstore"
)

// Dim probes the vector dimension of an fvecs or ivecs file without
// reading its records.
func Dim(path string) (int, error) {
	f, dim, _, err := openVecs(path, 4)
	if err != nil {
		return 0, err
	}
	f.Close()
	return dim, nil
}

// ReadFvecs reads an entire fvecs file. Returns the vector dimension and
// one row per record.
func ReadFvecs(path string) (int, [][]float32, error) {
	f, dim, numRecords, err := openVecs(path, 4)
	if err != nil {
		return 0, nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	vecs := make([][]float32, 0, numRecords)
	buf := make([]byte, 4*(dim+1))
	for i := 0; i < numRecords; i++ {
		if err := readRecord(r, buf, dim); err != nil {
			return 0, nil, fmt.Errorf("%s: record %d: %w", path, i, err)
		}
		row := make([]float32, dim)
		for d := 0; d < dim; d++ {
			row[d] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*(d+1):]))
		}
		vecs = append(vecs, row)
	}
	return dim, vecs, nil
}

// ReadIvecs reads an entire ivecs file (same layout as fvecs, int32
// payload).
func ReadIvecs(path string) (int, [][]int32, error) {
	f, dim, numRecords, err := openVecs(path, 4)
	if err != nil {
		return 0, nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	vecs := make([][]int32, 0, numRecords)
	buf := make([]byte, 4*(dim+1))
	for i := 0; i < numRecords; i++ {
		if err := readRecord(r, buf, dim); err != nil {
			return 0, nil, fmt.Errorf("%s: record %d: %w", path, i, err)
		}
		row := make([]int32, dim)
		for d := 0; d < dim; d++ {
			row[d] = int32(binary.LittleEndian.Uint32(buf[4*(d+1):]))
		}
		vecs = append(vecs, row)
	}
	return dim, vecs, nil
}

// ReadBvecs reads an entire bvecs file: int32 dimension then dim raw
// bytes per record.
func ReadBvecs(path string) (int, [][]byte, error) {
	f, dim, numRecords, err := openVecs(path, 1)
	if err != nil {
		return 0, nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	vecs := make([][]byte, 0, numRecords)
	buf := make([]byte, 4+dim)
	for i := 0; i < numRecords; i++ {
		if err := readRecord(r, buf, dim); err != nil {
			return 0, nil, fmt.Errorf("%s: record %d: %w", path, i, err)
		}
		row := make([]byte, dim)
		copy(row, buf[4:])
		vecs = append(vecs, row)
	}
	return dim, vecs, nil
}

// LoadFvecs streams an fvecs file into the store, appending each row.
// A limit <= 0 loads the whole file. Returns the number of rows loaded.
func LoadFvecs(path string, store vecstore.Store, limit int) (int, error) {
	f, dim, numRecords, err := openVecs(path, 4)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if dim != store.Dim() {
		return 0, fmt.Errorf("%s: file dimension %d does not match store dimension %d",
			path, dim, store.Dim())
	}
	if limit > 0 && limit < numRecords {
		numRecords = limit
	}

	r := bufio.NewReader(f)
	buf := make([]byte, 4*(dim+1))
	row := make([]float32, dim)
	for i := 0; i < numRecords; i++ {
		if err := readRecord(r, buf, dim); err != nil {
			return i, fmt.Errorf("%s: record %d: %w", path, i, err)
		}
		for d := 0; d < dim; d++ {
			row[d] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*(d+1):]))
		}
		if _, err := store.Append(row); err != nil {
			return i, fmt.Errorf("%s: record %d: %w", path, i, err)
		}
	}
	return numRecords, nil
}

// WriteFvecs writes rows to path in fvecs layout. Used by tests and
// tooling to build fixtures.
func WriteFvecs(path string, vecs [][]float32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	var scratch [4]byte
	for _, v := range vecs {
		binary.LittleEndian.PutUint32(scratch[:], uint32(int32(len(v))))
		if _, err := w.Write(scratch[:]); err != nil {
			return err
		}
		for _, x := range v {
			binary.LittleEndian.PutUint32(scratch[:], math.Float32bits(x))
			if _, err := w.Write(scratch[:]); err != nil {
				return err
			}
		}
	}
	return w.Flush()
}

// openVecs opens the file, probes the leading dimension and validates
// the file size against the record layout. elemSize is the payload
// element width in bytes (4 for fvecs/ivecs, 1 for bvecs).
func openVecs(path string, elemSize int) (*os.File, int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to open data file: %w", err)
	}

	var rawDim int32
	if err := binary.Read(f, binary.LittleEndian, &rawDim); err != nil {
		f.Close()
		return nil, 0, 0, fmt.Errorf("%s: failed to read dimension: %w", path, err)
	}
	if rawDim <= 0 {
		f.Close()
		return nil, 0, 0, fmt.Errorf("%s: invalid dimension %d", path, rawDim)
	}
	dim := int(rawDim)

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, 0, fmt.Errorf("%s: %w", path, err)
	}
	recordSize := int64(4 + dim*elemSize)
	if st.Size()%recordSize != 0 {
		f.Close()
		return nil, 0, 0, fmt.Errorf("%s: weird file size %d for dimension %d", path, st.Size(), dim)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, 0, 0, fmt.Errorf("%s: %w", path, err)
	}
	return f, dim, int(st.Size() / recordSize), nil
}

// readRecord reads one record into buf and checks its leading dimension
// against the probe.
func readRecord(r *bufio.Reader, buf []byte, dim int) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	if got := int(int32(binary.LittleEndian.Uint32(buf))); got != dim {
		return fmt.Errorf("record dimension %d differs from file dimension %d", got, dim)
	}
	return nil
}
