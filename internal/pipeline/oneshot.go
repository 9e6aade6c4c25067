package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
)

func ReadSource(path string) (Source, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return Source{}, fmt.Errorf("read %s: %w", path, err)
	}
	return Source{Name: filepath.Base(path), Content: blob}, nil
}

func ReadInput(pdfPath, catalogPath, supplierName string) (Input, error) {
	doc, err := ReadSource(pdfPath)
	if err != nil {
		return Input{}, err
	}
	cat, err := ReadSource(catalogPath)
	if err != nil {
		return Input{}, err
	}
	return Input{Document: doc, Catalog: cat, Supplier: supplierName}, nil
}
