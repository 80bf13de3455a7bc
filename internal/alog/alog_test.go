package alog

import (
	"testing"

	"github.com/alumet-go/alumet/naming"
)

func TestSetLevelDefaultsOnUnknownValue(t *testing.T) {
	SetLevel("bogus")
	SetLevel("debug") // restore default for the rest of the suite
}

func TestWithElementDoesNotPanic(t *testing.T) {
	e := WithElement(naming.ElementName{Plugin: "p", Element: "source-x"})
	e.Infof("polled %d points", 3)
	e.Warnf("retrying")
}
