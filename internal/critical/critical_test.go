package critical

import (
	"sync"
	"testing"
)

func TestDoSerialises(t *testing.T) {
	var wg sync.WaitGroup
	n := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				Do(func() { n++ })
			}
		}()
	}
	wg.Wait()
	if n != 8000 {
		t.Fatalf("n=%d", n)
	}
}
