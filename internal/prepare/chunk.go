package prepare

import (
	"fmt"
	"io"
	"os"

	"github.com/bpwhelan/ASB-Auto-Subs/pkg/file"
	"github.com/bpwhelan/ASB-Auto-Subs/pkg/log"
)

// Split cuts path into chunkBytes-sized pieces named
// {base}_part001{ext}, {base}_part002{ext}, ... in the same directory.
// The split is byte-oriented: decoders may glitch briefly at chunk
// seams, which is acceptable for transcription input. Every chunk is
// registered with temp before it is written.
func Split(path string, chunkBytes int64, temp *Registry) ([]string, error) {
	if chunkBytes <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkBytes)
	}

	in, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s for splitting: %w", path, err)
	}
	defer in.Close()

	var chunks []string
	for number := 1; ; number++ {
		chunkPath := file.InsertSuffix(path, fmt.Sprintf("_part%03d", number))

		out, err := os.Create(chunkPath)
		if err != nil {
			return nil, fmt.Errorf("create chunk %s: %w", chunkPath, err)
		}
		temp.Add(chunkPath)

		written, copyErr := io.CopyN(out, in, chunkBytes)
		closeErr := out.Close()

		if written > 0 {
			chunks = append(chunks, chunkPath)
		} else {
			// Source length was an exact multiple of chunkBytes; this
			// probe file is empty.
			_ = os.Remove(chunkPath)
		}

		if copyErr == io.EOF {
			break
		}
		if copyErr != nil {
			return nil, fmt.Errorf("write chunk %s: %w", chunkPath, copyErr)
		}
		if closeErr != nil {
			return nil, fmt.Errorf("close chunk %s: %w", chunkPath, closeErr)
		}
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("no chunks created from %s", path)
	}
	log.Info("Split %s into %d chunks", path, len(chunks))
	return chunks, nil
}
