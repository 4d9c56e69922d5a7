package main

import "time"

type RemoveBackgroundRequest struct {
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type,omitempty"`
}

type RemoveBackgroundResponse struct {
	ImageBase64 string `json:"image_base64"`
	DataURI     string `json:"data_uri"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type BenchResult struct {
	File       string
	Format     string
	Duration   time.Duration
	Err        error
	Size       int64
	ResultSize int64
}

type Agg struct {
	Count      int
	Total      time.Duration
	TotalBytes int64
	OutBytes   int64
}
