package lens

import "reflect"

// typeName returns the dynamic type name of v, stripping any pointer
// indirection, for use as the "error class" recorded in an error frame.
func typeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.String()
}
