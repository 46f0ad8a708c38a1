package checkpointer

import "fmt"

// nStep checkpoints an object every interval epochs
type nStep struct {
	interval int
	object   Serializable
	filename func(epoch int) string
}

// NewNStep returns a Checkpointer that saves object every n epochs to
// the file filename(epoch). A non-positive n never checkpoints.
func NewNStep(n int, object Serializable,
	filename func(epoch int) string) Checkpointer {
	return &nStep{
		interval: n,
		object:   object,
		filename: filename,
	}
}

// Checkpoint implements the Checkpointer interface
func (n *nStep) Checkpoint(epoch int) error {
	if n.interval <= 0 || epoch%n.interval != 0 {
		return nil
	}
	if err := Save(n.object, n.filename(epoch)); err != nil {
		return fmt.Errorf("checkpoint: epoch %v: %v", epoch, err)
	}
	return nil
}

// EpochFilename returns a filename function for NewNStep that names the
// checkpoint of epoch e base-e.ext, with e zero padded to three digits
func EpochFilename(base, ext string) func(epoch int) string {
	return func(epoch int) string {
		return fmt.Sprintf("%v-%03d%v", base, epoch, ext)
	}
}
