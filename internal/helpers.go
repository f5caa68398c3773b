package internal

// Must returns v and panics if given a non-nil error.
// Should be used only in case of non-recoverable developer error.
func Must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
