package hazarc_test

import (
	"fmt"
	"sync/atomic"

	"github.com/wyfo/hazarc"
)

// statusMsg is a trivial RefCounted value: a reference-counted string.
type statusMsg struct {
	refs int64
	text string
}

func (s *statusMsg) Retain() {
	atomic.AddInt64(&s.refs, 1)
}

func (s *statusMsg) Release() {
	atomic.AddInt64(&s.refs, -1)
}

func ExampleCell() {
	// This example demonstrates using a Cell to protect a global status
	// string (maybe the string a /healthz handler reports). The getter
	// and setter would ordinarily be package-level functions, but are
	// declared locally here for the sake of the example.
	domain := hazarc.NewDomain[statusMsg, *statusMsg]()
	cell := hazarc.New(domain, &statusMsg{refs: 1, text: "starting up"})

	getStatus := func() string {
		b := cell.Load()
		defer b.Release()
		return b.Get().text
	}

	setStatus := func(s string) {
		cell.Store(&statusMsg{refs: 1, text: s})
	}

	setStatus("foobar")
	fmt.Println(getStatus())
	// Output: foobar
}
