package export

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	awss3 "github.com/aws/aws-sdk-go/service/s3"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go-source/s3"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
)

// DataFrame is a generic container for tabular data: a slice of records
// plus the schema pointer the parquet library needs for inference.
// Records is exported so callers can range over the data directly.
type DataFrame[T any] struct {
	Records []T
	schema  any
}

// NewDataFrame wraps records in a DataFrame.
func NewDataFrame[T any](records []T) *DataFrame[T] {
	// A pointer to a zero T gives the parquet writer its schema; the
	// parquet:"..." struct tags on T do the rest.
	var empty T
	return &DataFrame[T]{
		Records: records,
		schema:  &empty,
	}
}

// ParquetConfig holds the tunables for parquet writing.
type ParquetConfig struct {
	Compression parquet.CompressionCodec
	Concurrency int64
}

// DefaultParquetConfig is SNAPPY with four writer goroutines — a sane
// default for files in the tens of megabytes.
func DefaultParquetConfig() ParquetConfig {
	return ParquetConfig{
		Compression: parquet.CompressionCodec_SNAPPY,
		Concurrency: 4,
	}
}

// WriteToParquet streams every record through a parquet writer into fw.
// Callers normally use the WriteToLocalParquet / WriteToS3Parquet
// wrappers; this variant exists for any other source.ParquetFile.
func (df *DataFrame[T]) WriteToParquet(fw source.ParquetFile, cfg ParquetConfig) error {
	pw, err := writer.NewParquetWriter(fw, df.schema, cfg.Concurrency)
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = cfg.Compression

	for i, record := range df.Records {
		if err := pw.Write(record); err != nil {
			// Best-effort close; the write error is the one that matters.
			_ = pw.WriteStop()
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}

	// WriteStop flushes row groups and writes the footer — without it
	// the file is unreadable.
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finalize parquet file: %w", err)
	}
	return nil
}

// WriteToLocalParquet writes the DataFrame to a parquet file on disk.
func (df *DataFrame[T]) WriteToLocalParquet(path string, cfg ...ParquetConfig) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("create parquet file %q: %w", path, err)
	}
	defer fw.Close()

	config := DefaultParquetConfig()
	if len(cfg) > 0 {
		config = cfg[0]
	}
	return df.WriteToParquet(fw, config)
}

// WriteToS3Parquet writes the DataFrame as a parquet object directly to
// S3, streaming through the SDK's uploader rather than staging a local
// file first. The object carries the bucket's default ACL.
func (df *DataFrame[T]) WriteToS3Parquet(ctx context.Context, client *awss3.S3, bucket, key string, cfg ...ParquetConfig) error {
	fw, err := s3.NewS3FileWriterWithClient(ctx, client, bucket, key, nil)
	if err != nil {
		return fmt.Errorf("create s3 writer for s3://%s/%s: %w", bucket, key, err)
	}
	defer fw.Close()

	config := DefaultParquetConfig()
	if len(cfg) > 0 {
		config = cfg[0]
	}
	return df.WriteToParquet(fw, config)
}

// ReadFromParquet loads an entire parquet file into a DataFrame.
func ReadFromParquet[T any](fr source.ParquetFile) (*DataFrame[T], error) {
	var empty T
	pr, err := reader.NewParquetReader(fr, &empty, 4)
	if err != nil {
		return nil, fmt.Errorf("create parquet reader: %w", err)
	}
	defer pr.ReadStop()

	records := make([]T, int(pr.GetNumRows()))
	if err := pr.Read(&records); err != nil {
		return nil, fmt.Errorf("read parquet data: %w", err)
	}

	return NewDataFrame(records), nil
}

// ReadFromLocalParquet loads a parquet file from disk.
func ReadFromLocalParquet[T any](path string) (*DataFrame[T], error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet file %q: %w", path, err)
	}
	defer fr.Close()

	return ReadFromParquet[T](fr)
}

// WriteToJSON writes the DataFrame to a single indented JSON array —
// the human-inspectable companion to the parquet output.
func (df *DataFrame[T]) WriteToJSON(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %q: %w", path, err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create JSON file %q: %w", path, err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(df.Records); err != nil {
		return fmt.Errorf("encode JSON file %q: %w", path, err)
	}
	return nil
}

// WriteToJSONL writes the DataFrame as JSON Lines: one record per line,
// the format most stream processors and warehouses ingest natively.
func (df *DataFrame[T]) WriteToJSONL(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %q: %w", path, err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create JSONL file %q: %w", path, err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	defer w.Flush()

	for i, record := range df.Records {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal record %d: %w", i, err)
		}
		if _, err := w.Write(line); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline after record %d: %w", i, err)
		}
	}
	return nil
}

// ReadFromJSONL reads a JSON Lines file back into a DataFrame, skipping
// blank lines.
func ReadFromJSONL[T any](path string) (*DataFrame[T], error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open JSONL file %q: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)

	// Default scanner capacity is 64KB per line; large records need
	// more headroom.
	const maxLine = 10 * 1024 * 1024
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)

	var records []T
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var record T
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, fmt.Errorf("parse JSONL line %d: %w", lineNum, err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read JSONL file %q: %w", path, err)
	}

	return NewDataFrame(records), nil
}
