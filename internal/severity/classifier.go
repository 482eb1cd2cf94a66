package severity

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/keyxmakerx/audittrail/internal/changeset"
)

// Authentication actions.
const (
	ActionLoginFailed = "user_login_failed"
	ActionLoggedIn    = "user_logged_in"
)

// Brute-force defaults: this many failures from one address within the
// window escalate to Critical.
const (
	DefaultBruteForceThreshold = 10
	DefaultBruteForceWindow    = 15 * time.Minute
)

// Counter counts recent log records of an action from one IP address. The
// Log Store implements it.
type Counter interface {
	CountRecent(ctx context.Context, action, ip string, since time.Time) (int, error)
}

// defaultRules maps exact actions to their level.
var defaultRules = map[string]Level{
	"post_published":        Info,
	"post_trashed":          Notice,
	"post_restored":         Notice,
	"user_created":          Notice,
	"user_role_changed":     Warning,
	"user_password_changed": Notice,
	"setting_updated":       Notice,
	"plugin_installed":      Notice,
	"plugin_activated":      Notice,
	"plugin_deactivated":    Notice,
	"plugin_updated":        Notice,
	"plugin_deleted":        Warning,
	"field_group_deleted":   Warning,
	ActionLoggedIn:          Info,
	ActionLoginFailed:       Warning,
}

// defaultImportant lists, per kind, the fields or sections whose change
// raises a record to at least Notice.
var defaultImportant = map[string][]string{
	"post":    {"price", "regular_price", "sale_price", "stock", "stock_status", "password", "status"},
	"user":    {"roles", "password", "email", "login"},
	"setting": {"users_can_register", "default_role", "admin_email", "siteurl", "home", "blog_public"},
	"plugin":  {"active", "network_active"},
	"media":   {"filename"},
}

// Classifier maps records to severity levels.
type Classifier struct {
	rules     map[string]Level
	important map[string]map[string]bool
	counter   Counter
	threshold int
	window    time.Duration
	now       func() time.Time
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithBruteForce overrides the brute-force threshold and window.
func WithBruteForce(threshold int, window time.Duration) Option {
	return func(c *Classifier) {
		if threshold > 0 {
			c.threshold = threshold
		}
		if window > 0 {
			c.window = window
		}
	}
}

// WithRule sets the level of an exact action.
func WithRule(action string, level Level) Option {
	return func(c *Classifier) { c.rules[action] = level }
}

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) { c.now = now }
}

// NewClassifier creates a classifier. counter may be nil, which disables
// the brute-force heuristic.
func NewClassifier(counter Counter, opts ...Option) *Classifier {
	c := &Classifier{
		rules:     make(map[string]Level, len(defaultRules)),
		important: make(map[string]map[string]bool, len(defaultImportant)),
		counter:   counter,
		threshold: DefaultBruteForceThreshold,
		window:    DefaultBruteForceWindow,
		now:       time.Now,
	}
	for a, l := range defaultRules {
		c.rules[a] = l
	}
	for kind, fields := range defaultImportant {
		set := make(map[string]bool, len(fields))
		for _, f := range fields {
			set[f] = true
		}
		c.important[kind] = set
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns the level of a detected change. Unknown actions are
// Info, deletions Warning; touching an important field raises the result
// to at least Notice.
func (c *Classifier) Classify(kind, action string, cs *changeset.ChangeSet) Level {
	level, ok := c.rules[action]
	if !ok {
		level = Info
		if strings.HasSuffix(action, "_deleted") {
			level = Warning
		}
	}

	if c.touchesImportant(kind, cs) {
		level = level.AtLeast(Notice)
	}
	return level
}

// touchesImportant reports whether cs changes a field, or a section, the
// kind marks as important.
func (c *Classifier) touchesImportant(kind string, cs *changeset.ChangeSet) bool {
	set := c.important[kind]
	if len(set) == 0 {
		return false
	}
	for _, s := range cs.Sections() {
		if set[s.Name] {
			return true
		}
		for _, ch := range s.Changes {
			if set[ch.Field] {
				return true
			}
		}
	}
	return false
}

// ClassifyLoginFailure rates a failed login from ip. A username that
// matches no account is Critical, a wrong password for a real account
// Warning. Reaching the brute-force threshold from one address within the
// window is Critical either way; the current attempt counts toward it.
func (c *Classifier) ClassifyLoginFailure(ctx context.Context, ip string, knownUser bool) Level {
	level := Critical
	if knownUser {
		level = c.rules[ActionLoginFailed]
	}

	if c.counter == nil || ip == "" {
		return level
	}
	prior, err := c.counter.CountRecent(ctx, ActionLoginFailed, ip, c.now().Add(-c.window))
	if err != nil {
		slog.Warn("counting recent login failures failed",
			slog.String("ip", ip),
			slog.Any("error", err),
		)
		return level
	}
	if prior+1 >= c.threshold {
		return level.AtLeast(Critical)
	}
	return level
}
