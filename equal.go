package streamobject

import "github.com/google/go-cmp/cmp"

// deepEqual implements structural equality over decoded JSON values
// (map[string]any / []any / scalars), not reference equality. Maps compare
// as unordered key-value pairs and arrays element-wise, which is exactly
// what cmp.Equal already does for these concrete types.
func deepEqual(a, b any) bool {
	return cmp.Equal(a, b)
}
