package cache

import "fmt"

// GenerateKey joins prefix and id into the canonical "prefix:id" form.
func GenerateKey(prefix, id string) string {
	return prefix + ":" + id
}

// GenerateKeyWithParams appends each param as a ":" separated segment.
// Params render with %v, so equal values always produce equal keys.
func GenerateKeyWithParams(prefix string, params ...interface{}) string {
	key := prefix
	for _, p := range params {
		key = fmt.Sprintf("%s:%v", key, p)
	}
	return key
}

// BuildPattern turns a key prefix into the glob DeleteByPattern expects.
func BuildPattern(prefix string) string {
	return prefix + "*"
}
