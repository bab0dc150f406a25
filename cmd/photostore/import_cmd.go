package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"photostore/internal/blobstore"
	"photostore/internal/config"
	"photostore/internal/models"
)

const (
	importFormatAuto  = "auto"
	importFormatJSON  = "json"
	importFormatJSONL = "jsonl"
	importFormatYAML  = "yaml"
)

type importResult struct {
	Records int      `json:"records" yaml:"records"`
	Stored  int      `json:"stored" yaml:"stored"`
	Failed  int      `json:"failed" yaml:"failed"`
	Errors  []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

func newImportCmd(cfg *config.Config) *cobra.Command {
	var (
		inputPath   string
		inputFormat string
		dryRun      bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import photo records from a JSON, JSON lines or YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputPath == "" {
				return errors.New("--input is required")
			}
			data, err := readInput(inputPath)
			if err != nil {
				return err
			}
			records, err := parseImportRecords(data, detectImportFormat(inputPath, inputFormat, data))
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return errors.New("no records found in input file")
			}

			uploads, result := normalizeImportRecords(records)
			if dryRun {
				return writeImportResult(result)
			}
			return withService(cmd, cfg, func(ctx context.Context, svc *blobstore.Service) error {
				for _, upload := range uploads {
					if _, err := svc.Store(ctx, upload.req.EncodedPayload, upload.req.UploaderID, blobstore.WithDerivative(upload.req.GenerateDerivative)); err != nil {
						result.Failed++
						result.Errors = append(result.Errors, fmt.Sprintf("record %d: %v", upload.index, err))
						continue
					}
					result.Stored++
				}
				return writeImportResult(result)
			})
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "input file (- for stdin)")
	cmd.Flags().StringVar(&inputFormat, "input-format", importFormatAuto, "input format: auto|json|jsonl|yaml")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate records without storing them")
	return cmd
}

type indexedUpload struct {
	index int
	req   models.UploadRequest
}

func normalizeImportRecords(records []map[string]any) ([]indexedUpload, importResult) {
	result := importResult{Records: len(records)}
	uploads := make([]indexedUpload, 0, len(records))
	for i, record := range records {
		req, err := models.NormalizeUpload(record)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("record %d: %v", i+1, err))
			continue
		}
		uploads = append(uploads, indexedUpload{index: i + 1, req: req})
	}
	return uploads, result
}

func detectImportFormat(path, requested string, data []byte) string {
	requested = strings.ToLower(strings.TrimSpace(requested))
	if requested != "" && requested != importFormatAuto {
		return requested
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return importFormatYAML
	case ".jsonl", ".ndjson":
		return importFormatJSONL
	}
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		return importFormatJSON
	}
	return importFormatJSONL
}

func parseImportRecords(data []byte, inputFormat string) ([]map[string]any, error) {
	var records []map[string]any
	switch inputFormat {
	case importFormatJSON:
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	case importFormatYAML:
		if err := yaml.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	case importFormatJSONL:
		scanner := bufio.NewScanner(bytes.NewReader(data))
		scanner.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
		lineNum := 0
		for scanner.Scan() {
			lineNum++
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var record map[string]any
			if err := json.Unmarshal(line, &record); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNum, err)
			}
			records = append(records, record)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown input format %q (expected json, jsonl or yaml)", inputFormat)
	}
	return records, nil
}

func writeImportResult(result importResult) error {
	if structuredOutput() {
		return writeStructured(result)
	}
	if err := writePlain("records: %d, stored: %d, failed: %d\n", result.Records, result.Stored, result.Failed); err != nil {
		return err
	}
	for _, line := range result.Errors {
		fmt.Fprintln(os.Stderr, line)
	}
	return nil
}
