package model

// Accessors for normalized records.  They assume the value was produced by
// Validate or by a backend scan, so types already match the column kind.

func Int(v Values, field string) int64 {
	n, _ := v[field].(int64)
	return n
}

func IntPtr(v Values, field string) *int64 {
	n, ok := v[field].(int64)
	if !ok {
		return nil
	}
	return &n
}

func Real(v Values, field string) float64 {
	f, _ := v[field].(float64)
	return f
}

func RealPtr(v Values, field string) *float64 {
	f, ok := v[field].(float64)
	if !ok {
		return nil
	}
	return &f
}

func Text(v Values, field string) string {
	s, _ := v[field].(string)
	return s
}

func Bool(v Values, field string) bool {
	b, _ := v[field].(bool)
	return b
}

func putText(v Values, field, s string) {
	if s != "" {
		v[field] = s
	}
}
