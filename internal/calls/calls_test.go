package calls

import (
	"sync"
	"testing"
)

func TestRecorder(t *testing.T) {
	var r Recorder[string]
	if r.LastCall() != nil {
		t.Fatal("empty recorder has a last call")
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Record("Chat", "hello")
		}()
	}
	wg.Wait()
	r.Record("Close", "")

	if n := r.CallCount("Chat"); n != 10 {
		t.Errorf("Chat count = %d, want 10", n)
	}
	if last := r.LastCall(); last.Method != "Close" {
		t.Errorf("last = %+v", last)
	}

	got := r.Calls()
	got[0].Method = "mutated"
	if r.Calls()[0].Method != "Chat" {
		t.Error("Calls returned the internal slice")
	}

	r.Reset()
	if len(r.Calls()) != 0 {
		t.Error("Reset kept calls")
	}
}
