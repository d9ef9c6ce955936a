package selector

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/stoewer/go-strcase"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
)

// Evaluate reports whether obj satisfies every clause of selector
func Evaluate(obj any, selector string) (bool, error) {
	expr, err := Parse(selector)
	if err != nil {
		return false, err
	}
	return expr.Matches(obj), nil
}

// Filter returns the objects satisfying selector, in input order. The selector
// is parsed before any object is inspected, so a malformed selector fails even
// for an empty input.
func Filter[T any](objects []T, selector string) ([]T, error) {
	expr, err := Parse(selector)
	if err != nil {
		return nil, err
	}
	return FilterExpression(objects, expr), nil
}

// FilterExpression is Filter for an already compiled expression
func FilterExpression[T any](objects []T, expr Expression) []T {
	out := make([]T, 0, len(objects))
	for _, obj := range objects {
		if expr.Matches(obj) {
			out = append(out, obj)
		}
	}
	return out
}

// Matches reports whether obj satisfies every clause. Objects that cannot be
// viewed as a field map only match the empty expression.
func (e Expression) Matches(obj any) bool {
	if e.Empty() {
		return true
	}
	fields, ok := fieldsOf(obj)
	if !ok {
		return false
	}
	for _, clause := range e.Clauses {
		if !clause.matches(fields) {
			return false
		}
	}
	return true
}

func (c Clause) matches(fields map[string]interface{}) bool {
	value, found := resolve(fields, c.Path)
	if !found {
		return false
	}
	rendered, ok := render(value)
	if !ok {
		return false
	}
	if c.Op == NotEquals {
		return rendered != c.Literal
	}
	return rendered == c.Literal
}

// resolve walks path starting at fields. found is false when any segment is
// absent, null, or indexes past the end of a sequence.
func resolve(fields map[string]interface{}, path []Segment) (interface{}, bool) {
	var current interface{} = fields
	for _, seg := range path {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		next, ok := lookup(m, seg.Name)
		if !ok || next == nil {
			return nil, false
		}
		if seg.Index != nil {
			items, ok := next.([]interface{})
			if !ok || *seg.Index >= len(items) {
				return nil, false
			}
			next = items[*seg.Index]
			if next == nil {
				return nil, false
			}
		}
		current = next
	}
	return current, true
}

// lookup finds a field by its wire name. snake_case spellings such as
// owner_references or pod_ip are accepted too.
func lookup(m map[string]interface{}, name string) (interface{}, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	if !strings.Contains(name, "_") {
		return nil, false
	}
	if v, ok := m[strcase.LowerCamelCase(name)]; ok {
		return v, true
	}
	folded := strings.ReplaceAll(name, "_", "")
	for key, v := range m {
		if strings.EqualFold(key, folded) {
			return v, true
		}
	}
	return nil, false
}

func render(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case int:
		return strconv.Itoa(v), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(v)
		if err != nil {
			return "", false
		}
		return string(data), true
	default:
		return fmt.Sprint(v), true
	}
}

// fieldsOf returns the wire-shaped field map of obj
func fieldsOf(obj any) (map[string]interface{}, bool) {
	switch o := obj.(type) {
	case nil:
		return nil, false
	case map[string]interface{}:
		return o, true
	case *unstructured.Unstructured:
		if o == nil {
			return nil, false
		}
		return o.Object, true
	case unstructured.Unstructured:
		return o.Object, true
	case runtime.Unstructured:
		return o.UnstructuredContent(), true
	}

	v := reflect.ValueOf(obj)
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() || v.Elem().Kind() != reflect.Struct {
			return nil, false
		}
	case reflect.Struct:
		ptr := reflect.New(v.Type())
		ptr.Elem().Set(v)
		obj = ptr.Interface()
	default:
		return nil, false
	}

	fields, err := runtime.DefaultUnstructuredConverter.ToUnstructured(obj)
	if err != nil {
		return nil, false
	}
	return fields, true
}
