package helpers

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
)

// NewTestAllocator creates a CheckedAllocator that fails t at cleanup if any
// Arrow memory is still allocated.
func NewTestAllocator(t testing.TB) *memory.CheckedAllocator {
	t.Helper()
	alloc := memory.NewCheckedAllocator(memory.NewGoAllocator())
	t.Cleanup(func() { AssertNoLeaks(t, alloc) })
	return alloc
}

// AssertNoLeaks verifies that all Arrow memory has been properly released.
func AssertNoLeaks(t testing.TB, alloc *memory.CheckedAllocator) {
	t.Helper()
	if n := alloc.CurrentAlloc(); n > 0 {
		t.Fatalf("Arrow memory leak detected: %d bytes still allocated", n)
	}
}
