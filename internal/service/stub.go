package service

import "context"

// StubRemover returns the input unchanged. Used for local runs without an API key.
type StubRemover struct{}

func NewStubRemover() *StubRemover { return &StubRemover{} }

func (StubRemover) RemoveBackground(_ context.Context, base64Image, _ string) (string, error) {
	return base64Image, nil
}
