package cmd

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

type session struct {
	connected bool
	err       error
}

func TestReconnectBackoff(t *testing.T) {
	lost := errors.New("connection reset by peer")
	tests := []struct {
		name     string
		sessions []session
		want     []int
	}{
		{"dial failures grow", []session{{false, lost}, {false, lost}, {false, lost}}, []int{0, 1, 2}},
		{"healthy session resets", []session{{false, lost}, {false, lost}, {true, lost}, {false, lost}}, []int{0, 1, 0, 1}},
		{"drop right after connect", []session{{true, lost}, {true, lost}}, []int{0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			calls := 0
			consume := func(context.Context) (bool, error) {
				if calls == len(tt.sessions) {
					cancel()
					return false, context.Canceled
				}
				s := tt.sessions[calls]
				calls++
				return s.connected, s.err
			}
			var got []int
			backoff := func(attempt int) time.Duration {
				got = append(got, attempt)
				return 0
			}

			if err := reconnect(ctx, consume, backoff); err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(got, tt.want) {
				t.Fatalf("backoff attempts = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReconnectStopsOnOtherErrors(t *testing.T) {
	denied := errors.New("access refused: login was refused")
	consume := func(context.Context) (bool, error) { return false, denied }
	backoff := func(int) time.Duration { return 0 }

	if err := reconnect(context.Background(), consume, backoff); !errors.Is(err, denied) {
		t.Fatalf("err = %v, want %v", err, denied)
	}
}
