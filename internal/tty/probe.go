package tty

import "reflect"

// AsRecorder reports whether t itself is a Recorder. It does not look
// through wrappers; use Find for that.
func AsRecorder(t Tty) (Recorder, error) {
	if r, ok := t.(Recorder); ok {
		return r, nil
	}
	return nil, Unsupported(t, "recording")
}

// Find walks down a chain through InnerAccessor layers and returns the
// first layer that implements T.
//
// A layer that refuses Inner (for example a recorder whose inner channel
// is owned by a background reader) ends the walk with its error.
func Find[T any](t Tty) (T, error) {
	var zero T
	cur := t
	for cur != nil {
		if v, ok := cur.(T); ok {
			return v, nil
		}
		acc, ok := cur.(InnerAccessor)
		if !ok {
			break
		}
		next, err := acc.Inner()
		if err != nil {
			return zero, err
		}
		cur = next
	}
	return zero, Unsupported(t, reflect.TypeOf((*T)(nil)).Elem().String())
}
