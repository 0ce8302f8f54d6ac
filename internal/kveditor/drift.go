package kveditor

import (
	"fmt"
	"strings"

	"github.com/wI2L/jsondiff"
)

// Drift returns the JSON patch that turns the observed values of the
// desired keys into the desired values, as of the last Report. Tags are the
// first path segment for tagconf files.
func (e *Editor) Drift() (jsondiff.Patch, error) {
	if e.observed == nil {
		return nil, nil
	}
	observed := make(map[string]any)
	desired := make(map[string]any)
	for tag, vals := range e.desired {
		obs := make(map[string]any)
		want := make(map[string]any)
		for key, list := range vals {
			if have, ok := e.observed[tag][key]; ok {
				obs[key] = have
			}
			if e.intent == Present {
				want[key] = list
			}
		}
		if e.typ == Conf {
			observed, desired = obs, want
			break
		}
		observed[tag] = obs
		desired[tag] = want
	}

	patch, err := jsondiff.Compare(observed, desired)
	if err != nil {
		return nil, fmt.Errorf("kveditor: drift: %w", err)
	}
	return patch, nil
}

// DescribeDrift renders a patch as one human readable line per operation.
func DescribeDrift(patch jsondiff.Patch) []string {
	var out []string
	for _, op := range patch {
		key := strings.TrimPrefix(op.Path, "/")
		switch op.Type {
		case jsondiff.OperationAdd:
			out = append(out, fmt.Sprintf("%s: missing, want %v", key, op.Value))
		case jsondiff.OperationRemove:
			out = append(out, fmt.Sprintf("%s: present, want absent", key))
		case jsondiff.OperationReplace:
			out = append(out, fmt.Sprintf("%s: want %v", key, op.Value))
		}
	}
	return out
}
