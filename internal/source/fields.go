package source

import (
	"fmt"
	"strings"

	"github.com/Jeffail/gabs"

	"github.com/ppiankov/varscore/internal/model"
)

// parseBody decodes a JSON response body
func parseBody(body []byte) (*gabs.Container, *model.Failure) {
	parsed, err := gabs.ParseJSON(body)
	if err != nil {
		return nil, &model.Failure{Kind: model.FailureTransport, Message: fmt.Sprintf("decode response: %v", err)}
	}
	return parsed, nil
}

// emptyRecord reports whether a document carries no data: null, an empty
// object or array, or an object whose keys are all metadata ("_id", "_version").
func emptyRecord(c *gabs.Container) bool {
	switch data := c.Data().(type) {
	case nil:
		return true
	case []interface{}:
		return len(data) == 0
	case map[string]interface{}:
		for k := range data {
			if !strings.HasPrefix(k, "_") {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// number reads a numeric value at path. Objects holding the number under a
// key of the same name as the last path segment ({"af": {"af": 0.1}}) and
// single-element lists are unwrapped.
func number(c *gabs.Container, path string) (float64, bool) {
	node := c.Path(path)
	for i := 0; i < 2; i++ {
		switch data := node.Data().(type) {
		case map[string]interface{}:
			segs := strings.Split(path, ".")
			node = node.Path(segs[len(segs)-1])
		case []interface{}:
			if len(data) == 0 {
				return 0, false
			}
			node = node.Index(0)
		}
	}
	v, ok := model.FromJSON(node.Data())
	if !ok {
		return 0, false
	}
	return v.Number()
}

// str reads a non-empty string at path
func str(c *gabs.Container, path string) (string, bool) {
	s, ok := c.Path(path).Data().(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// stringsAt collects every string found at path, flattening nested lists
func stringsAt(c *gabs.Container, path string) []string {
	v, ok := model.FromJSON(c.Path(path).Data())
	if !ok {
		return nil
	}
	return v.Strings()
}
