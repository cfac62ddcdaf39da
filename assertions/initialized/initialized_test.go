package initialized_test

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/pasqal-io/graphdasse/assertions/initialized"
)

type guarded struct {
	witness initialized.IsInitialized
}

func TestWitness(t *testing.T) {
	good := guarded{witness: initialized.Make()}
	assert.Assert(t, good.witness.IsValid())
	good.witness.Assert()

	var bad guarded
	assert.Assert(t, !bad.witness.IsValid())
	assert.Assert(t, panics(bad.witness.Assert), "a zero witness should panic")
}

func panics(f func()) (result bool) {
	defer func() {
		result = recover() != nil
	}()
	f()
	return false
}
