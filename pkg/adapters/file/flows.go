package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/casfuk/whatsapp-flow-builder-sub001/internal/compiler"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
)

var flowExts = map[string]bool{".json": true, ".yaml": true, ".yml": true}

// FlowStore implements ports.FlowStore over a directory of flow documents.
// Every read goes to disk so edits are picked up without a restart; wrap it
// in a cache adapter for hot paths.
type FlowStore struct {
	Dir string
}

// NewFlowStore creates a FlowStore reading from dir.
func NewFlowStore(dir string) *FlowStore {
	return &FlowStore{Dir: dir}
}

// GetFlow resolves ref as a file name first (<ref>.json, .yaml, .yml), then by
// scanning every document for a matching id or key.
func (s *FlowStore) GetFlow(ctx context.Context, ref string) (*domain.Flow, error) {
	if ref == "" || strings.ContainsAny(ref, `/\`) {
		return nil, fmt.Errorf("%w: %q", domain.ErrFlowNotFound, ref)
	}

	for ext := range flowExts {
		path := filepath.Join(s.Dir, ref+ext)
		if _, err := os.Stat(path); err == nil {
			flow, err := LoadFlow(path)
			if err != nil {
				return nil, err
			}
			if flow.ID == ref || flow.Key == ref {
				return flow, nil
			}
		}
	}

	paths, err := s.paths()
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		flow, err := LoadFlow(path)
		if err != nil {
			// One broken document must not hide the others.
			continue
		}
		if flow.ID == ref || (flow.Key != "" && flow.Key == ref) {
			return flow, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrFlowNotFound, ref)
}

// ListFlows returns the IDs of every loadable flow document.
func (s *FlowStore) ListFlows(ctx context.Context) ([]string, error) {
	paths, err := s.paths()
	if err != nil {
		return nil, err
	}
	ids := []string{}
	for _, path := range paths {
		flow, err := LoadFlow(path)
		if err != nil {
			continue
		}
		ids = append(ids, flow.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *FlowStore) paths() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow directory: %w", err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !flowExts[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		paths = append(paths, filepath.Join(s.Dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadFlow reads and compiles a single flow document.
func LoadFlow(path string) (*domain.Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow file: %w", err)
	}
	flow, err := compiler.Compile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return flow, nil
}
