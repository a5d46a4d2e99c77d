package favorites

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// FilePersister stores the favorites list as JSON on disk, one file per
// device.
type FilePersister struct {
	Path string
}

func NewFilePersister(path string) *FilePersister {
	return &FilePersister{Path: path}
}

func (p *FilePersister) Save(products []Product) error {
	data, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("encode favorites: %w", err)
	}
	if err := os.WriteFile(p.Path, data, 0o600); err != nil {
		return fmt.Errorf("write favorites file: %w", err)
	}
	return nil
}

func (p *FilePersister) Load() ([]Product, error) {
	data, err := os.ReadFile(p.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read favorites file: %w", err)
	}
	var products []Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("decode favorites: %w", err)
	}
	return products, nil
}
