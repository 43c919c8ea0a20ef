package backoff

import (
	"testing"
	"time"
)

func TestNext_RateLimitedSchedule(t *testing.T) {
	p := Default()
	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		32 * time.Second,
		60 * time.Second,
		60 * time.Second,
		60 * time.Second,
	}
	prev := time.Duration(0)
	for i, expected := range want {
		delay, retry := p.Next(i+1, RateLimited)
		if !retry {
			t.Fatalf("attempt %d: retry denied", i+1)
		}
		if delay != expected {
			t.Errorf("attempt %d: delay %s, want %s", i+1, delay, expected)
		}
		if delay < prev {
			t.Errorf("attempt %d: delay %s decreased from %s", i+1, delay, prev)
		}
		prev = delay
	}
}

func TestNext_RateLimitedUnboundedByDefault(t *testing.T) {
	p := Default()
	if _, retry := p.Next(1000, RateLimited); !retry {
		t.Error("rate-limited retries should be unbounded by default")
	}
}

func TestNext_RateLimitedCeiling(t *testing.T) {
	p := Default()
	p.RateLimitRetries = 3
	if _, retry := p.Next(3, RateLimited); !retry {
		t.Error("attempt 3 should retry with ceiling 3")
	}
	if _, retry := p.Next(4, RateLimited); retry {
		t.Error("attempt 4 should not retry with ceiling 3")
	}
}

func TestNext_TransientCapped(t *testing.T) {
	p := Default()
	for attempt := 1; attempt <= 5; attempt++ {
		if _, retry := p.Next(attempt, TransientNetwork); !retry {
			t.Errorf("attempt %d: transient retry denied under cap", attempt)
		}
	}
	if _, retry := p.Next(6, TransientNetwork); retry {
		t.Error("attempt 6: transient retry allowed past cap of 5")
	}
}

func TestNext_TransientShorterBase(t *testing.T) {
	p := Default()
	delay, _ := p.Next(1, TransientNetwork)
	rlDelay, _ := p.Next(1, RateLimited)
	if delay >= rlDelay {
		t.Errorf("transient base %s should be shorter than rate-limit base %s", delay, rlDelay)
	}
}

func TestNext_FatalNeverRetries(t *testing.T) {
	p := Default()
	delay, retry := p.Next(1, Fatal)
	if retry {
		t.Error("fatal failures must not retry")
	}
	if delay != 0 {
		t.Errorf("fatal delay: got %s, want 0", delay)
	}
}

func TestNext_NoneNeverRetries(t *testing.T) {
	p := Default()
	if _, retry := p.Next(1, None); retry {
		t.Error("successful attempts must not schedule a retry")
	}
}

func TestNext_DelayCapped(t *testing.T) {
	p := Policy{RateLimitBase: time.Second, Factor: 10, MaxDelay: 5 * time.Second}
	delay, _ := p.Next(50, RateLimited)
	if delay != 5*time.Second {
		t.Errorf("delay: got %s, want capped 5s", delay)
	}
}

func TestFailureKindString(t *testing.T) {
	cases := map[FailureKind]string{
		None:             "none",
		RateLimited:      "rate_limited",
		TransientNetwork: "transient_network",
		Fatal:            "fatal",
	}
	for kind, want := range cases {
		if kind.String() != want {
			t.Errorf("%d.String(): got %s, want %s", kind, kind.String(), want)
		}
	}
}
