package mention

import (
	"bufio"
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed mention.schema.json
var mentionSchemaJSON string

const maxLineBytes = 4 << 20

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// Load reads mentions from a JSONL file. A missing file yields an empty batch.
func Load(path string, logger *zerolog.Logger) (Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Batch{}, nil
		}
		return Batch{}, fmt.Errorf("open mentions %s: %w", path, err)
	}
	defer f.Close()

	return Read(f, logger)
}

// Read decodes one mention per line. Blank lines are ignored; lines that are not
// JSON objects matching the mention schema are skipped and counted.
func Read(r io.Reader, logger *zerolog.Logger) (Batch, error) {
	schema, err := loadSchema()
	if err != nil {
		return Batch{}, fmt.Errorf("load mention schema: %w", err)
	}

	var batch Batch
	br := bufio.NewReaderSize(r, 64*1024)

	lineNo := 0
	for {
		raw, tooLong, readErr := readLine(br)
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return batch, fmt.Errorf("read mentions: %w", readErr)
		}

		if len(raw) > 0 || tooLong {
			lineNo++
			if tooLong {
				batch.Skipped++
				if logger != nil {
					logger.Warn().Int("line", lineNo).Int("max_bytes", maxLineBytes).Msg("skipping oversized mention line")
				}
			} else if line := bytes.TrimSpace(raw); len(line) > 0 {
				m, err := decodeLine(schema, line)
				if err != nil {
					batch.Skipped++
					if logger != nil {
						logger.Warn().Err(err).Int("line", lineNo).Msg("skipping malformed mention")
					}
				} else {
					batch.Mentions = append(batch.Mentions, m)
				}
			}
		}

		if errors.Is(readErr, io.EOF) {
			return batch, nil
		}
	}
}

// readLine returns the next line including its newline. Lines longer than
// maxLineBytes are consumed and discarded, reported by tooLong.
func readLine(br *bufio.Reader) (line []byte, tooLong bool, err error) {
	for {
		chunk, rerr := br.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(bytes.TrimRight(chunk, "\r\n")) > maxLineBytes {
				tooLong = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(rerr, bufio.ErrBufferFull) {
			continue
		}
		return line, tooLong, rerr
	}
}

func decodeLine(schema *jsonschema.Schema, line []byte) (Raw, error) {
	decoder := json.NewDecoder(bytes.NewReader(line))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return Raw{}, fmt.Errorf("decode json: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return Raw{}, fmt.Errorf("schema validation failed: %w", err)
	}

	var m Raw
	if err := json.Unmarshal(line, &m); err != nil {
		return Raw{}, fmt.Errorf("unmarshal mention: %w", err)
	}
	m.Neighborhood = blankToEmpty(m.Neighborhood)
	m.Cuisine = blankToEmpty(m.Cuisine)
	m.Why = blankToEmpty(m.Why)
	m.SourceURL = blankToEmpty(m.SourceURL)
	m.Sentiment = blankToEmpty(m.Sentiment)
	if t, ok := ParseTime(m.CreatedISO); ok {
		m.Created = t
	}
	return m, nil
}

func blankToEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return s
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		if err := compiler.AddResource("mention.schema.json", strings.NewReader(mentionSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("mention.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}
