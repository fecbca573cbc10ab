package app

import "github.com/dkeye/Interview/internal/domain"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
)

// Policy decides what happens to a connection whose outbound buffer is full.
type Policy interface {
	OnBackPressure(id domain.ConnID) BackpressureAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.ConnID) BackpressureAction {
	return KickMember
}
