// Package chunks stores sequence-numbered payloads in lz4-compressed tar files.
package chunks

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/pierrec/lz4/v4"
)

var ErrNotFound = errors.New("not found")

const chunkExt = ".tar.lz4"

var compressionLevels = []lz4.CompressionLevel{
	lz4.Fast,
	lz4.Level1, lz4.Level2, lz4.Level3,
	lz4.Level4, lz4.Level5, lz4.Level6,
	lz4.Level7, lz4.Level8, lz4.Level9,
}

// ChunkRange is an inclusive range of stored sequences.
type ChunkRange struct {
	L, R uint64
}

func (r ChunkRange) Len() uint64 {
	return r.R - r.L + 1
}

type Chunks struct {
	Dir             string
	ChunkNamePrefix string
	// CompressionLevel is 0 (fast) to 9 (best).
	CompressionLevel   int
	MaxEntriesPerChunk int
	MaxChunkSize       int

	chunks []ChunkRange

	writerTmpPath   string
	writerFile      *os.File
	writerLz4       *lz4.Writer
	writerTar       *tar.Writer
	writerChunkSize int

	readerFile     *os.File
	readerTar      *tar.Reader
	readerChunk    ChunkRange
	readerLastSeek uint64
}

func (c *Chunks) FillMissingFields() {
	if c.MaxEntriesPerChunk <= 0 {
		c.MaxEntriesPerChunk = 10000
	}
	if c.MaxChunkSize <= 0 {
		c.MaxChunkSize = 64 * 1024 * 1024
	}
}

func (c *Chunks) Open() error {
	c.FillMissingFields()
	if c.CompressionLevel < 0 || c.CompressionLevel >= len(compressionLevels) {
		return fmt.Errorf("compression level must be in [0, %d], got %d", len(compressionLevels)-1, c.CompressionLevel)
	}
	if err := os.MkdirAll(c.Dir, 0755); err != nil {
		return err
	}

	re, err := regexp.Compile(fmt.Sprintf(`^%s(?P<First>\d{9,})-(?P<Last>\d{9,})\.tar\.lz4$`, regexp.QuoteMeta(c.ChunkNamePrefix)))
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		return err
	}
	c.chunks = c.chunks[:0]
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := re.FindStringSubmatch(entry.Name())
		if len(match) != 3 {
			continue
		}
		l, err := strconv.ParseUint(match[1], 10, 64)
		if err != nil {
			continue
		}
		r, err := strconv.ParseUint(match[2], 10, 64)
		if err != nil || l > r {
			continue
		}
		c.chunks = append(c.chunks, ChunkRange{L: l, R: r})
	}
	sort.Slice(c.chunks, func(i, j int) bool { return c.chunks[i].L < c.chunks[j].L })

	c.writerTmpPath = filepath.Join(c.Dir, fmt.Sprintf("%snext.tmp", c.ChunkNamePrefix))

	return nil
}

// GetLeftmostAbsentRange returns the first inclusive range within [min, max]
// that no chunk covers, or ErrNotFound if everything is stored.
func (c *Chunks) GetLeftmostAbsentRange(min, max uint64) (l uint64, r uint64, err error) {
	if min > max {
		return 0, 0, fmt.Errorf("min > max")
	}

	l, r = min, max
	for _, chunk := range c.chunks {
		if chunk.R < l || chunk.L > r {
			continue
		}
		if chunk.L <= l && chunk.R >= r {
			return 0, 0, ErrNotFound
		}
		if chunk.L <= l {
			l = chunk.R + 1
		} else {
			r = chunk.L - 1
		}
	}
	return l, r, nil
}

func (c *Chunks) getChunkPath(chunk ChunkRange) string {
	return filepath.Join(c.Dir, fmt.Sprintf("%s%09d-%09d%s", c.ChunkNamePrefix, chunk.L, chunk.R, chunkExt))
}

// Flush finalizes the chunk being written so it becomes visible under its
// final name.
func (c *Chunks) Flush() error {
	if c.writerFile == nil {
		return nil
	}
	if err := c.writerTar.Close(); err != nil {
		return err
	}
	if err := c.writerLz4.Close(); err != nil {
		return err
	}
	if err := c.writerFile.Sync(); err != nil {
		return err
	}
	if err := c.writerFile.Close(); err != nil {
		return err
	}
	c.writerTar, c.writerLz4, c.writerFile = nil, nil, nil
	return os.Rename(c.writerTmpPath, c.getChunkPath(c.chunks[len(c.chunks)-1]))
}

func (c *Chunks) startNewChunk(pos uint64) error {
	if err := c.Flush(); err != nil {
		return err
	}
	var err error
	if c.writerFile, err = os.Create(c.writerTmpPath); err != nil {
		return err
	}
	c.writerLz4 = lz4.NewWriter(c.writerFile)
	if err := c.writerLz4.Apply(lz4.CompressionLevelOption(compressionLevels[c.CompressionLevel])); err != nil {
		c.writerFile.Close()
		c.writerFile, c.writerLz4 = nil, nil
		return fmt.Errorf("unable to configure lz4 writer: %w", err)
	}
	c.writerTar = tar.NewWriter(c.writerLz4)
	c.chunks = append(c.chunks, ChunkRange{L: pos, R: pos})
	c.writerChunkSize = 0
	return nil
}

// Write appends payload under pos. A non-consecutive pos or a full chunk
// starts a new chunk file.
func (c *Chunks) Write(pos uint64, payload []byte) error {
	newChunkNeeded := false
	if c.writerFile == nil {
		newChunkNeeded = true
	} else {
		curChunk := c.chunks[len(c.chunks)-1]
		newChunkNeeded = curChunk.R != pos-1
		newChunkNeeded = newChunkNeeded || curChunk.Len()+1 > uint64(c.MaxEntriesPerChunk)
		newChunkNeeded = newChunkNeeded || c.writerChunkSize+len(payload) > c.MaxChunkSize
	}
	if newChunkNeeded {
		if err := c.startNewChunk(pos); err != nil {
			return err
		}
	}

	err := c.writerTar.WriteHeader(&tar.Header{
		Name: fmt.Sprintf("%09d", pos),
		Mode: 0666,
		Size: int64(len(payload)),
	})
	if err != nil {
		return err
	}

	numWritten, err := c.writerTar.Write(payload)
	if err != nil {
		return err
	}
	if numWritten != len(payload) {
		return fmt.Errorf("numWritten [%d] != len(payload) [%d]", numWritten, len(payload))
	}
	c.writerChunkSize += len(payload)
	c.chunks[len(c.chunks)-1].R = pos

	return nil
}

func (c *Chunks) CloseReader() error {
	if c.readerFile == nil {
		return nil
	}
	if err := c.readerFile.Close(); err != nil {
		return err
	}
	c.readerFile, c.readerTar = nil, nil
	return nil
}

// Close flushes the writer and closes the reader.
func (c *Chunks) Close() error {
	flushErr := c.Flush()
	if err := c.CloseReader(); err != nil {
		return err
	}
	return flushErr
}

// SeekReader positions the reader at the first stored sequence >= pos.
func (c *Chunks) SeekReader(pos uint64) error {
	if err := c.CloseReader(); err != nil {
		return err
	}

	idx := -1
	var leftmost uint64
	for i, chunk := range c.chunks {
		if chunk.R < pos {
			continue
		}
		candidate := pos
		if chunk.L > pos {
			candidate = chunk.L
		}
		if idx < 0 || candidate < leftmost {
			idx, leftmost = i, candidate
		}
	}
	if idx < 0 {
		return ErrNotFound
	}

	if c.writerFile != nil && idx == len(c.chunks)-1 {
		if err := c.Flush(); err != nil {
			return err
		}
	}

	c.readerChunk = c.chunks[idx]
	var err error
	c.readerFile, err = os.Open(c.getChunkPath(c.readerChunk))
	if err != nil {
		return err
	}
	c.readerTar = tar.NewReader(lz4.NewReader(c.readerFile))
	c.readerLastSeek = pos

	return nil
}

// ReadNext returns the next stored sequence and its payload, moving on to the
// following chunk when the current one is exhausted. It returns ErrNotFound
// past the last chunk.
func (c *Chunks) ReadNext() (uint64, []byte, error) {
	if c.readerFile == nil {
		if err := c.SeekReader(0); err != nil {
			return 0, nil, err
		}
	}

	for {
		hdr, err := c.readerTar.Next()
		if err == io.EOF {
			if err := c.SeekReader(c.readerChunk.R + 1); err != nil {
				return 0, nil, err
			}
			continue
		}
		if err != nil {
			return 0, nil, fmt.Errorf("unable to read chunk %s: %w", c.getChunkPath(c.readerChunk), err)
		}
		cur, err := strconv.ParseUint(hdr.Name, 10, 64)
		if err != nil {
			return 0, nil, err
		}
		if cur < c.readerLastSeek {
			continue
		}
		data, err := io.ReadAll(c.readerTar)
		if err != nil {
			return 0, nil, err
		}
		if int64(len(data)) != hdr.Size {
			return 0, nil, fmt.Errorf("int64(len(data)) [%d] != hdr.Size [%d]", int64(len(data)), hdr.Size)
		}
		return cur, data, nil
	}
}

func (c *Chunks) GetChunkRanges() []ChunkRange {
	chunksCopy := make([]ChunkRange, len(c.chunks))
	copy(chunksCopy, c.chunks)
	return chunksCopy
}
