package frontline

import "errors"

// ErrIgnoreListFull is returned by IgnoreList.Add once MaxTypes entries
// are already held: a hard ceiling rather than a reallocation point.
var ErrIgnoreListFull = errors.New("frontline: ignore list is full")

// IgnoreList is the fixed-capacity set of frontline type codes the
// decoder drops fragments for. Membership is checked linearly, which
// is the right tradeoff at this size.
type IgnoreList struct {
	types [MaxTypes]uint8
	n     int
}

// Add inserts typ if it is not already present. It is a no-op if typ
// is already a member, and fails with ErrIgnoreListFull otherwise.
func (l *IgnoreList) Add(typ uint8) error {
	if l.Contains(typ) {
		return nil
	}
	if l.n >= MaxTypes {
		return ErrIgnoreListFull
	}
	l.types[l.n] = typ
	l.n++
	return nil
}

// Remove deletes typ from the set if present.
func (l *IgnoreList) Remove(typ uint8) {
	for i := 0; i < l.n; i++ {
		if l.types[i] == typ {
			l.types[i] = l.types[l.n-1]
			l.n--
			return
		}
	}
}

// Contains reports whether typ is in the set.
func (l *IgnoreList) Contains(typ uint8) bool {
	for i := 0; i < l.n; i++ {
		if l.types[i] == typ {
			return true
		}
	}
	return false
}

// Len reports the number of types currently held.
func (l *IgnoreList) Len() int { return l.n }
