package callbacks

// Params is an optional trampoline/userdata pair, as accepted by loop
// core calls whose callback slot is itself optional.
type Params[P any] struct {
	Proxy    P
	Userdata uintptr
}

// Unwrap normalizes an optional pair into the two discrete values a
// registration call expects: the pair's contents if present, or
// (nil, 0) if absent. The core models "no callback" as a nil function
// plus ignored userdata, whereas callers here deal in a single optional
// value; this helper is the bridge.
func Unwrap[P any](p *Params[P]) (P, uintptr) {
	if p == nil {
		var none P
		return none, 0
	}
	return p.Proxy, p.Userdata
}
