// main is the entry point of the users-export tool: a small ETL job
// that drains every user out of a running users-api instance and writes
// them to analytics-friendly files.
//
// Outputs, under the -out directory:
//
//	users.json     indented JSON array (human-inspectable)
//	users.jsonl    JSON Lines (stream/warehouse ingestion)
//	users.parquet  SNAPPY-compressed parquet (columnar analytics)
//
// With -s3-bucket set, the parquet export is additionally uploaded to
// S3 using the standard AWS credential chain (env vars, shared config,
// instance role).
//
// RUNNING:
//
//	go run ./cmd/users-export --base-url=http://localhost:8082/users/ --out=tmp
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	awss3 "github.com/aws/aws-sdk-go/service/s3"

	"github.com/aanand-mishra/users-api/internal/export"
)

func main() {
	baseURL := flag.String("base-url", "http://localhost:8082/users/",
		"listing endpoint of the users-api instance")
	outDir := flag.String("out", "tmp",
		"directory for the export files")
	pageLimit := flag.Int("page-limit", 50,
		"users to request per page (the API caps limit at 100)")
	timeout := flag.Duration("timeout", 5*time.Minute,
		"overall deadline for the whole export job")
	s3Bucket := flag.String("s3-bucket", "",
		"if set, also upload the parquet export to this S3 bucket")
	s3Key := flag.String("s3-key", "exports/users.parquet",
		"object key for the S3 upload")
	s3Region := flag.String("s3-region", "us-east-1",
		"AWS region for the S3 upload")
	flag.Parse()

	// A one-shot CLI tool: text logs at debug level, no env switching.
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(log)

	// The context deadline covers fetching AND writing, so a hung
	// server or a stalled S3 upload cannot keep the job alive forever.
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	log.Info("starting users export",
		slog.String("base_url", *baseURL),
		slog.Int("page_limit", *pageLimit),
	)

	client := export.NewClient(*baseURL, export.WithPageLimit(*pageLimit))

	users, err := client.FetchAll(ctx)
	if err != nil {
		log.Error("failed to fetch users", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("fetched users", slog.Int("count", len(users)))

	df := export.NewDataFrame(users)

	jsonPath := filepath.Join(*outDir, "users.json")
	if err := df.WriteToJSON(jsonPath); err != nil {
		log.Error("failed to write JSON export", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("wrote JSON export", slog.String("path", jsonPath))

	jsonlPath := filepath.Join(*outDir, "users.jsonl")
	if err := df.WriteToJSONL(jsonlPath); err != nil {
		log.Error("failed to write JSONL export", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("wrote JSONL export", slog.String("path", jsonlPath))

	parquetPath := filepath.Join(*outDir, "users.parquet")
	if err := df.WriteToLocalParquet(parquetPath); err != nil {
		log.Error("failed to write parquet export", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("wrote parquet export", slog.String("path", parquetPath))

	if *s3Bucket != "" {
		sess, err := session.NewSession(&aws.Config{
			Region: aws.String(*s3Region),
		})
		if err != nil {
			log.Error("failed to create AWS session", slog.String("error", err.Error()))
			os.Exit(1)
		}

		if err := df.WriteToS3Parquet(ctx, awss3.New(sess), *s3Bucket, *s3Key); err != nil {
			log.Error("failed to upload parquet export to S3",
				slog.String("error", err.Error()))
			os.Exit(1)
		}
		log.Info("uploaded parquet export",
			slog.String("bucket", *s3Bucket),
			slog.String("key", *s3Key),
		)
	}

	log.Info("export complete")
}
