package inclusion

import (
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	// The expirable LRU runs a janitor goroutine for its lifetime.
	goleak.VerifyTestMain(m, goleak.IgnoreAnyFunction("github.com/hashicorp/golang-lru/v2/expirable.NewLRU[...].func1"))
}
