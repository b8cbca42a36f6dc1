package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zombor/doc-capture/internal/capture"
	"github.com/zombor/doc-capture/internal/extraction"
)

// workflow is the part of the capture controller a one-shot run drives
type workflow interface {
	SelectFile(doc extraction.Document)
	Submit() bool
	Wait()
	Snapshot() capture.State
}

// runOnce selects the file at path, submits it and prints the fields
func runOnce(w workflow, path string, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	w.SelectFile(extraction.Document{
		Filename:    filepath.Base(path),
		ContentType: capture.ContentTypeFromFilename(path),
		Data:        data,
	})
	w.Submit()
	w.Wait()

	state := w.Snapshot()
	if state.Error != "" {
		return errors.New(state.Error)
	}
	if state.Result == nil {
		return errors.New(extraction.FallbackMessage)
	}
	return printResult(out, state.Result)
}

// printResult writes the fields under their display labels
func printResult(out io.Writer, result *extraction.Result) error {
	_, err := fmt.Fprintf(out, "Name: %s\nDocument Number: %s\nExpiration Date: %s\n",
		result.Name, result.DocumentNumber, result.ExpirationDate)
	return err
}
