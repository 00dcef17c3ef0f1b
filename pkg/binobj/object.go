package binobj

import (
	"fmt"
)

// ReadObject decodes one T at the cursor. Primitive T is decoded directly;
// any other T must have a layout (Describer or Define). On error the zero T
// is returned.
func ReadObject[T any](r *Reader) (T, error) {
	var out T
	if k := KindOf[T](); k != KindInvalid {
		v, err := r.ReadValue(k)
		if err != nil {
			return out, err
		}
		assign(&out, v)
		return out, nil
	}

	l, err := describe[T](r.cache, r.logger)
	if err != nil {
		return out, err
	}
	if err := l.populate(r, &out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// ReadObjectAt is ReadObject at an absolute offset, seeking and decoding
// under the reader's lock.
func ReadObjectAt[T any](r *Reader, addr int64) (T, error) {
	return readAt(r, addr, func() (T, error) { return ReadObject[T](r) })
}

// ReadArray decodes count consecutive Ts. The first failing element aborts
// the whole read.
func ReadArray[T any](r *Reader, count int) ([]T, error) {
	if count < 0 {
		return nil, &ConfigError{Type: elemName[T](), Reason: fmt.Sprintf("negative array count %d", count)}
	}
	if KindOf[T]() == KindUint8 {
		if _, sub := r.substitutions[KindUint8]; !sub {
			b, err := r.readRaw(count)
			if err != nil {
				return nil, err
			}
			return any(b).([]T), nil
		}
	}
	out := make([]T, count)
	for i := range out {
		v, err := ReadObject[T](r)
		if err != nil {
			return nil, fmt.Errorf("element %d of %d: %w", i, count, err)
		}
		out[i] = v
	}
	return out, nil
}

// ReadArrayAt is ReadArray at an absolute offset.
func ReadArrayAt[T any](r *Reader, addr int64, count int) ([]T, error) {
	return readAt(r, addr, func() ([]T, error) { return ReadArray[T](r, count) })
}

// populate fills rec field by field in declaration order. Fields outside the
// reader's version range are skipped without touching the stream.
func (l *Layout[T]) populate(r *Reader, rec *T) error {
	r.logger.Debug("Decoding record", "type", l.name, "offset", r.pos(), "version", r.version)
	for i := range l.fields {
		f := &l.fields[i]
		if !f.desc.Versions.Includes(r.version) {
			r.logger.Debug("Skipping field outside version range", "type", l.name, "field", f.desc.Name, "versions", f.desc.Versions.String(), "version", r.version)
			continue
		}
		if err := f.decode(r, rec); err != nil {
			return fmt.Errorf("decoding %s.%s: %w", l.name, f.desc.Name, err)
		}
	}
	return nil
}
