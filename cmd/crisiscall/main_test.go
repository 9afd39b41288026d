package main

import (
	"context"
	"errors"
	"testing"
)

type fakeService struct {
	runErr   error
	shutdown int
}

func (f *fakeService) Run(context.Context) error { return f.runErr }
func (f *fakeService) Shutdown()                 { f.shutdown++ }

func TestServeShutsDown(t *testing.T) {
	tests := []struct {
		name   string
		runErr error
	}{
		{"clean exit", nil},
		{"run error", errors.New("listen tcp :8080: address already in use")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeService{runErr: tt.runErr}
			if err := serve(context.Background(), s); !errors.Is(err, tt.runErr) {
				t.Errorf("serve() = %v, want %v", err, tt.runErr)
			}
			if s.shutdown != 1 {
				t.Errorf("Shutdown called %d times, want 1", s.shutdown)
			}
		})
	}
}
