package errorx

import "errors"

// Persistable marks a failure whose state changes must still be written. An
// account update closure returns it after counting a wrong code guess: the
// repository commits the new attempt count and hands the inner error back.
type Persistable struct {
	Err error
}

// NewPersistable returns nil for a nil err.
func NewPersistable(err error) *Persistable {
	if err == nil {
		return nil
	}
	return &Persistable{Err: err}
}

func (p *Persistable) Error() string {
	if p == nil || p.Err == nil {
		return "persistable: <nil>"
	}
	return p.Err.Error()
}

func (p *Persistable) Unwrap() error { return p.Err }

// IsPersistable reports whether any error in err's chain asks to be committed.
func IsPersistable(err error) bool {
	var p *Persistable
	return errors.As(err, &p) && p != nil
}
