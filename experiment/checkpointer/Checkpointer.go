// Package checkpointer implements saving serializable objects, such as
// policies, while an experiment runs
package checkpointer

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
)

// Serializable is an object that can be saved/serialized
type Serializable interface {
	gob.GobEncoder
	gob.GobDecoder
}

// Checkpointer checkpoints/saves serializable objects based on the
// epoch of an experiment
type Checkpointer interface {
	Checkpoint(epoch int) error
}

// Save gob encodes object to the file filename
func Save(object Serializable, filename string) error {
	data, err := object.GobEncode()
	if err != nil {
		return fmt.Errorf("save: could not encode: %v", err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(data); err != nil {
		return fmt.Errorf("save: could not encode: %v", err)
	}
	if err := os.WriteFile(filename, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("save: %v", err)
	}
	return nil
}

// Load decodes the file filename, written by Save, into object
func Load(object Serializable, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("load: %v", err)
	}
	defer file.Close()

	var data []byte
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return fmt.Errorf("load: could not decode: %v", err)
	}
	if err := object.GobDecode(data); err != nil {
		return fmt.Errorf("load: %v", err)
	}
	return nil
}
