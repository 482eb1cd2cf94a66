package severity

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/keyxmakerx/audittrail/internal/changeset"
)

// --- Mock Counter ---

type mockCounter struct {
	countFn func(action, ip string, since time.Time) (int, error)
}

func (m *mockCounter) CountRecent(_ context.Context, action, ip string, since time.Time) (int, error) {
	return m.countFn(action, ip, since)
}

func changes(section, field string) *changeset.ChangeSet {
	cs := changeset.New()
	cs.Add(section, changeset.Change{Field: field, Kind: changeset.Modified})
	return cs
}

func TestClassify(t *testing.T) {
	c := NewClassifier(nil)

	tests := []struct {
		name   string
		kind   string
		action string
		cs     *changeset.ChangeSet
		want   Level
	}{
		{"title edit", "post", "post_updated", changes("basic", "title"), Info},
		{"price edit", "post", "post_updated", changes("commerce", "price"), Notice},
		{"deletion", "post", "post_deleted", nil, Warning},
		{"unknown kind deletion", "widget", "widget_deleted", nil, Warning},
		{"unknown action", "widget", "widget_frobbed", changes("basic", "x"), Info},
		{"role change", "user", "user_role_changed", changes("access", "roles"), Warning},
		{"sensitive setting", "setting", "setting_updated", changes("users_can_register", "value"), Notice},
		{"plugin activated", "plugin", "plugin_activated", changes("basic", "active"), Notice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.kind, tt.action, tt.cs); got != tt.want {
				t.Errorf("Classify = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassify_ImportantNeverLowers(t *testing.T) {
	c := NewClassifier(nil)
	if got := c.Classify("plugin", "plugin_deleted", changes("basic", "active")); got != Warning {
		t.Errorf("got %s, want warning kept", got)
	}
}

func TestClassifyLoginFailure_Identity(t *testing.T) {
	counter := &mockCounter{countFn: func(string, string, time.Time) (int, error) { return 0, nil }}
	c := NewClassifier(counter)
	ctx := context.Background()

	if got := c.ClassifyLoginFailure(ctx, "10.0.0.1", true); got != Warning {
		t.Errorf("known user = %s, want warning", got)
	}
	if got := c.ClassifyLoginFailure(ctx, "10.0.0.1", false); got != Critical {
		t.Errorf("unknown user = %s, want critical", got)
	}
}

func TestClassifyLoginFailure_BruteForce(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var failures []time.Time
	counter := &mockCounter{countFn: func(action, ip string, since time.Time) (int, error) {
		if action != ActionLoginFailed || ip != "10.0.0.9" {
			return 0, nil
		}
		n := 0
		for _, at := range failures {
			if !at.Before(since) {
				n++
			}
		}
		return n, nil
	}}
	c := NewClassifier(counter, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	for i := 1; i <= 12; i++ {
		got := c.ClassifyLoginFailure(ctx, "10.0.0.9", true)
		want := Warning
		if i >= 10 {
			want = Critical
		}
		if got != want {
			t.Errorf("attempt %d = %s, want %s", i, got, want)
		}
		failures = append(failures, now)
		now = now.Add(time.Minute)
	}

	// Outside the window the count starts over.
	now = now.Add(time.Hour)
	if got := c.ClassifyLoginFailure(ctx, "10.0.0.9", true); got != Warning {
		t.Errorf("after window = %s, want warning", got)
	}
}

func TestClassifyLoginFailure_CounterError(t *testing.T) {
	counter := &mockCounter{countFn: func(string, string, time.Time) (int, error) {
		return 0, errors.New("db down")
	}}
	c := NewClassifier(counter)
	if got := c.ClassifyLoginFailure(context.Background(), "1.2.3.4", true); got != Warning {
		t.Errorf("got %s, want warning", got)
	}
}

func TestLevel_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Severity Level `json:"severity"`
	}{Critical})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != `{"severity":"critical"}` {
		t.Errorf("got %s", b)
	}

	var l Level
	if err := json.Unmarshal([]byte(`"Notice"`), &l); err != nil || l != Notice {
		t.Errorf("Unmarshal = %s, %v", l, err)
	}
	if err := json.Unmarshal([]byte(`"loud"`), &l); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestLevel_Ordering(t *testing.T) {
	if Info.AtLeast(Notice) != Notice {
		t.Error("Info raised to Notice should be Notice")
	}
	if Critical.AtLeast(Notice) != Critical {
		t.Error("Critical should stay Critical")
	}
	for i, l := range Levels {
		if int(l) != i || !l.Valid() {
			t.Errorf("Levels[%d] = %d", i, l)
		}
	}
}
