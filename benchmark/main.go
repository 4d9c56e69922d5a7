package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	backendEndpoint = "http://localhost:8080/api/v1/remove-background"
	outputDir       = filepath.Join(".", "out")

	formatFiles = []string{"jpg", "png", "webp"}
	mimeTypes   = map[string]string{
		"jpg":  "image/jpeg",
		"png":  "image/png",
		"webp": "image/webp",
	}
)

func main() {
	ctx := context.Background()

	if v := os.Getenv("BENCH_ENDPOINT"); v != "" {
		backendEndpoint = v
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		log.Fatalf("create output dir: %v", err)
	}

	var results []BenchResult
	for _, formatFile := range formatFiles {
		dataPath := filepath.Join(".", "data", formatFile)

		images, _ := os.ReadDir(dataPath)

		for _, img := range images {
			filePath := filepath.Join(dataPath, img.Name())
			res := benchmarkImage(ctx, filePath, formatFile)

			if res.Err != nil {
				log.Println("ERR:", res.Err)
			} else {
				log.Printf("OK %s %v", res.File, res.Duration)
			}

			results = append(results, res)
		}
	}

	printMarkdown(results)
}

func benchmarkImage(ctx context.Context, filePath, format string) BenchResult {
	start := time.Now()

	fileRaw, err := os.ReadFile(filePath)
	if err != nil {
		return BenchResult{File: filePath, Err: err}
	}

	req := RemoveBackgroundRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(fileRaw),
		MimeType:    mimeTypes[format],
	}

	var resp RemoveBackgroundResponse
	err = send(ctx, req, &resp)

	res := BenchResult{
		File:     filepath.Base(filePath),
		Format:   format,
		Duration: time.Since(start),
		Err:      err,
		Size:     int64(len(fileRaw)),
	}
	if err != nil {
		return res
	}

	out, err := base64.StdEncoding.DecodeString(resp.ImageBase64)
	if err != nil {
		res.Err = fmt.Errorf("decode result for %s: %w", res.File, err)
		return res
	}
	res.ResultSize = int64(len(out))

	name := strings.TrimSuffix(res.File, filepath.Ext(res.File)) + ".png"
	if err := os.WriteFile(filepath.Join(outputDir, name), out, 0o644); err != nil {
		res.Err = fmt.Errorf("write result: %w", err)
	}
	return res
}

func send[T, R any](ctx context.Context, req T, out *R) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal req: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, backendEndpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		var e ErrorResponse
		if json.Unmarshal(b, &e) == nil && e.Error != "" {
			return fmt.Errorf("bad status %d: %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("bad status %d: %s",
			resp.StatusCode,
			strings.TrimSpace(string(b)),
		)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func aggregate(results []BenchResult) map[string]Agg {
	m := map[string]Agg{}
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		a := m[r.Format]
		a.Count++
		a.TotalBytes += r.Size
		a.OutBytes += r.ResultSize
		a.Total += r.Duration
		m[r.Format] = a
	}
	return m
}

func printMarkdown(results []BenchResult) {
	fmt.Print("\n## Benchmark Results\n\n")
	fmt.Println("| Format | Requests | Failed | Avg Time | Total Time | Avg Input | Avg Output |")
	fmt.Println("|--------|----------|--------|----------|------------|-----------|------------|")

	agg := aggregate(results)

	failed := map[string]int{}
	for _, r := range results {
		if r.Err != nil {
			failed[r.Format]++
		}
	}

	var (
		totalCount    int
		totalFailed   int
		totalDuration time.Duration
		totalBytes    int64
		totalOut      int64
	)

	for format, a := range agg {
		avg := a.Total / time.Duration(a.Count)
		fmt.Printf("| %s | %d | %d | %v | %v | %s | %s |\n",
			format,
			a.Count,
			failed[format],
			avg.Round(time.Millisecond),
			a.Total.Round(time.Millisecond),
			humanBytes(a.TotalBytes/int64(a.Count)),
			humanBytes(a.OutBytes/int64(a.Count)),
		)
		totalCount += a.Count
		totalDuration += a.Total
		totalBytes += a.TotalBytes
		totalOut += a.OutBytes
	}
	for _, n := range failed {
		totalFailed += n
	}

	if totalCount > 0 {
		mean := totalDuration / time.Duration(totalCount)
		fmt.Printf("| **ALL** | %d | %d | %v | %v | %s | %s |\n",
			totalCount,
			totalFailed,
			mean.Round(time.Millisecond),
			totalDuration.Round(time.Millisecond),
			humanBytes(totalBytes/int64(totalCount)),
			humanBytes(totalOut/int64(totalCount)),
		)
	}
}

func humanBytes(size int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)
	switch {
	case size >= GB:
		return fmt.Sprintf("%.2f GB", float64(size)/GB)
	case size >= MB:
		return fmt.Sprintf("%.2f MB", float64(size)/MB)
	case size >= KB:
		return fmt.Sprintf("%.2f KB", float64(size)/KB)
	default:
		return fmt.Sprintf("%d B", size)
	}
}
