// Package calc holds the per-session calculator state and everything that
// reads or writes it without touching the network: the command interpreter,
// the wire renderer and the on-disk record codec.
package calc

// NumVariables is the number of single-letter variables a session holds (a-z).
const NumVariables = 26

// Variables is the variable table of one session.
// Values[i] is meaningful only when Used[i] is true.
type Variables struct {
	Used   [NumVariables]bool
	Values [NumVariables]float64
}

// Index maps a lowercase letter to its slot. ok is false for anything else.
func Index(letter byte) (idx int, ok bool) {
	if letter < 'a' || letter > 'z' {
		return 0, false
	}
	return int(letter - 'a'), true
}

// Letter is the inverse of Index.
func Letter(idx int) byte {
	return byte('a' + idx)
}

// Get returns the value of letter if it has been assigned.
func (v *Variables) Get(letter byte) (float64, bool) {
	idx, ok := Index(letter)
	if !ok || !v.Used[idx] {
		return 0, false
	}
	return v.Values[idx], true
}

// Set assigns letter and marks it used. Letters outside a-z are ignored.
func (v *Variables) Set(letter byte, value float64) {
	idx, ok := Index(letter)
	if !ok {
		return
	}
	v.Used[idx] = true
	v.Values[idx] = value
}

// Count returns how many variables are in use.
func (v *Variables) Count() int {
	n := 0
	for _, used := range v.Used {
		if used {
			n++
		}
	}
	return n
}
