package runtime

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// placeholderPattern is the single syntax definition shared by reference
// extraction and runtime resolution, so the two passes cannot diverge.
var placeholderPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// identChainPattern matches a dot-separated identifier chain.
var identChainPattern = regexp.MustCompile(`^\w+(?:\.\w+)*$`)

// ExtractStepReferences returns the set of step names a template refers
// to, sorted for deterministic edge building. A placeholder refers to a
// step when its first path segment is not the reserved identifier
// "inputs". Values are never resolved here.
func ExtractStepReferences(template string) []string {
	seen := make(map[string]bool)
	for _, match := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		path := match[1]
		if !identChainPattern.MatchString(path) {
			continue
		}
		first := strings.SplitN(path, ".", 2)[0]
		if first != "inputs" {
			seen[first] = true
		}
	}

	refs := make([]string, 0, len(seen))
	for ref := range seen {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

// ResolveTemplate substitutes every ${path} placeholder against the
// execution context. Each placeholder resolves independently; any
// unresolvable path fails the whole template with a TemplateError.
func ResolveTemplate(template string, exec *Execution) (string, error) {
	matches := placeholderPattern.FindAllStringSubmatchIndex(template, -1)
	if len(matches) == 0 {
		return template, nil
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(template[last:m[0]])
		path := template[m[2]:m[3]]

		value, ok := exec.Lookup(strings.Split(path, ".")...)
		if !ok {
			return "", &TemplateError{Path: path}
		}
		b.WriteString(stringify(value))
		last = m[1]
	}
	b.WriteString(template[last:])

	return b.String(), nil
}

// stringify converts a resolved value to its natural string form.
// Lists and mappings become JSON.
func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return "null"
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
