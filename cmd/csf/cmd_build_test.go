package main

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tamirms/csf"
	csferrors "github.com/tamirms/csf/errors"
)

// writeInputs writes keys one per line and values as big-endian words.
func writeInputs(t *testing.T, keys []string, values []uint64) (string, string) {
	t.Helper()
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "keys.txt")
	if err := os.WriteFile(keyPath, []byte(strings.Join(keys, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var buf []byte
	for _, v := range values {
		buf = binary.BigEndian.AppendUint64(buf, v)
	}
	valuePath := filepath.Join(dir, "values.bin")
	if err := os.WriteFile(valuePath, buf, 0o644); err != nil {
		t.Fatal(err)
	}
	return keyPath, valuePath
}

func TestBuildFromStdinValueCount(t *testing.T) {
	keys := []string{"red", "green", "blue"}
	tests := []struct {
		name   string
		values []uint64
	}{
		{"fewer values", []uint64{1, 2}},
		{"more values", []uint64{1, 2, 3, 4}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			keyPath, valuePath := writeInputs(t, keys, tc.values)
			job := &buildJob{
				keys:    &lineSource{path: keyPath},
				values:  &valueSource{path: valuePath},
				tempDir: t.TempDir(),
			}
			_, err := buildFromStdin(context.Background(), job, csf.Strings{}, bytesToString, nil)
			if !errors.Is(err, csferrors.ErrValueCountMismatch) {
				t.Fatalf("err = %v, want ErrValueCountMismatch", err)
			}
		})
	}
}
