package expr

import (
	"fmt"
	"regexp"

	"github.com/latticerun/engine/errs"
)

var selectorToken = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

const maxInterpolationDepth = 10

// InterpolateSelectors substitutes `{{NAME}}` tokens in source with the
// corresponding entry of selectors, recursively, up to
// maxInterpolationDepth, detecting cycles via an expansion stack (spec
// §4.1 "interpolate_selectors").
func InterpolateSelectors(source string, selectors map[string]string) (string, error) {
	return interpolate(source, selectors, nil, 0)
}

func interpolate(source string, selectors map[string]string, stack []string, depth int) (string, error) {
	if depth > maxInterpolationDepth {
		return "", errs.CircularSelectorRef.New(fmt.Sprintf("exceeded max interpolation depth %d", maxInterpolationDepth))
	}

	var outerErr error
	expanded := selectorToken.ReplaceAllStringFunc(source, func(m string) string {
		if outerErr != nil {
			return m
		}
		name := selectorToken.FindStringSubmatch(m)[1]
		for _, s := range stack {
			if s == name {
				outerErr = errs.CircularSelectorRef.New(name)
				return m
			}
		}
		val, ok := selectors[name]
		if !ok {
			outerErr = errs.UnresolvedSelectorRef.New(name)
			return m
		}
		sub, err := interpolate(val, selectors, append(append([]string{}, stack...), name), depth+1)
		if err != nil {
			outerErr = err
			return m
		}
		return "(" + sub + ")"
	})
	if outerErr != nil {
		return "", outerErr
	}
	return expanded, nil
}
