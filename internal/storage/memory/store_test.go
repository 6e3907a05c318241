package memory

import (
	"testing"

	"github.com/bcnelson/activation-key-server/internal/storage"
	"github.com/bcnelson/activation-key-server/internal/storage/storagetest"
)

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage { return New() })
}
