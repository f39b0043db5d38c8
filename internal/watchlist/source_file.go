package watchlist

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// FileProvider opens a staged list file of newline-delimited JSON records.
// The upstream fetch job writes the file; ingestion only reads it.
type FileProvider struct {
	Path string
}

func (p FileProvider) Open(_ context.Context) (ListSource, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, fmt.Errorf("open list file: %w", err)
	}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &fileSource{file: f, scanner: scanner}, nil
}

type fileSource struct {
	file    *os.File
	scanner *bufio.Scanner
	line    int
}

func (s *fileSource) Next(ctx context.Context) (RawListRecord, bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			s.close()
			return RawListRecord{}, false, err
		}
		if !s.scanner.Scan() {
			err := s.scanner.Err()
			s.close()
			if err != nil {
				return RawListRecord{}, false, fmt.Errorf("read list file: %w", err)
			}
			return RawListRecord{}, false, nil
		}
		s.line++
		raw := s.scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec RawListRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			s.close()
			return RawListRecord{}, false, fmt.Errorf("decode list record at line %d: %w", s.line, err)
		}
		return rec, true, nil
	}
}

func (s *fileSource) close() {
	if s.file != nil {
		s.file.Close()
		s.file = nil
	}
}
