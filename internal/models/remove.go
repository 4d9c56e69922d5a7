package models

import (
	"fmt"
	"strings"
)

// RemoveBackgroundRequest represents request for the stateless removal endpoint
type RemoveBackgroundRequest struct {
	ImageBase64 string `json:"image_base64" validate:"required" example:"/9j/4AAQSkZJRgABAQAAAQABAAD..."`
	MimeType    string `json:"mime_type" example:"image/jpeg"`
}

func (r RemoveBackgroundRequest) Validate() error {
	if r.ImageBase64 == "" {
		return fmt.Errorf("image_base64 is empty")
	}
	if r.MimeType != "" && !strings.HasPrefix(r.MimeType, "image/") {
		return fmt.Errorf("mime_type {%s} is not an image type", r.MimeType)
	}
	return nil
}

type RemoveBackgroundResponse struct {
	ImageBase64 string `json:"image_base64" example:"iVBORw0KGgoAAAANSUhEUgAA..."`
	DataURI     string `json:"data_uri" example:"data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAA..."`
}

type ErrorResponse struct {
	Error string `json:"error" example:"Failed to remove background. Please try again."`
}
