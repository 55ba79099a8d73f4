package service

import (
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestDailySpec(t *testing.T) {
	tests := []struct {
		hour, minute int
		want         string
		wantErr      bool
	}{
		{8, 0, "0 0 8 * * *", false},
		{23, 59, "0 59 23 * * *", false},
		{7, 5, "0 5 7 * * *", false},
		{24, 0, "", true},
		{12, 60, "", true},
		{-1, 0, "", true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d:%d", tt.hour, tt.minute), func(t *testing.T) {
			got, err := DailySpec(tt.hour, tt.minute)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err: got %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSchedulerEntries(t *testing.T) {
	s := NewScheduler(time.UTC, log.New(io.Discard))

	if _, err := s.ScheduleInterval(0, func() {}); err == nil {
		t.Error("zero interval accepted")
	}
	if _, err := s.ScheduleDaily(25, 0, func() {}); err == nil {
		t.Error("invalid daily time accepted")
	}

	if _, err := s.ScheduleInterval(time.Hour, func() {}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ScheduleDaily(8, 0, func() {}); err != nil {
		t.Fatal(err)
	}
	if got := len(s.Entries()); got != 2 {
		t.Errorf("entries: got %d, want 2", got)
	}

	s.Start()
	s.Stop()
}

func TestSchedulerRunsJobs(t *testing.T) {
	s := NewScheduler(time.UTC, log.New(io.Discard))
	ran := make(chan struct{}, 1)
	if _, err := s.ScheduleInterval(time.Second, func() {
		select {
		case ran <- struct{}{}:
		default:
		}
	}); err != nil {
		t.Fatal(err)
	}

	s.Start()
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("interval job did not run")
	}
}
