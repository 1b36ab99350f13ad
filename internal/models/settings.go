package models

import (
	"encoding/json"
	"math"
	"sort"
	"time"
)

type CaptchaSettings struct {
	Enabled          bool `json:"enabled"`
	TriggerThreshold int  `json:"trigger_threshold"`
}

type RateLimitSettings struct {
	Enabled       bool `json:"enabled"`
	MaxAttempts   int  `json:"max_attempts"`
	WindowMinutes int  `json:"window_minutes"`
}

// Window returns the rate-limit window as a duration.
func (r RateLimitSettings) Window() time.Duration {
	return time.Duration(r.WindowMinutes) * time.Minute
}

type TwoFactorSettings struct {
	Enabled bool   `json:"enabled"`
	Method  string `json:"method"`
}

type PasswordPolicy struct {
	MinLength        int  `json:"min_length"`
	RequireSpecial   bool `json:"require_special"`
	RequireNumbers   bool `json:"require_numbers"`
	RequireUppercase bool `json:"require_uppercase"`
}

type SessionSettings struct {
	TimeoutMinutes int `json:"timeout_minutes"`
	RememberMeDays int `json:"remember_me_days"`
}

// SecuritySettings is the runtime security policy. Values are copied per
// request so a concurrent update never produces a torn read.
type SecuritySettings struct {
	Captcha        CaptchaSettings   `json:"captcha"`
	RateLimiting   RateLimitSettings `json:"rate_limiting"`
	TwoFactor      TwoFactorSettings `json:"two_factor"`
	PasswordPolicy PasswordPolicy    `json:"password_policy"`
	Session        SessionSettings   `json:"session"`
	Version        int64             `json:"version"`
}

// Two-factor delivery methods
const (
	TwoFactorMethodEmail = "email"
	TwoFactorMethodSMS   = "sms"
	TwoFactorMethodApp   = "app"
	TwoFactorMethodLog   = "log"
)

func DefaultSecuritySettings() SecuritySettings {
	return SecuritySettings{
		Captcha:      CaptchaSettings{Enabled: true, TriggerThreshold: 2},
		RateLimiting: RateLimitSettings{Enabled: true, MaxAttempts: 5, WindowMinutes: 15},
		TwoFactor:    TwoFactorSettings{Enabled: true, Method: TwoFactorMethodEmail},
		PasswordPolicy: PasswordPolicy{
			MinLength:        8,
			RequireSpecial:   true,
			RequireNumbers:   true,
			RequireUppercase: true,
		},
		Session: SessionSettings{TimeoutMinutes: 30, RememberMeDays: 7},
	}
}

// Upper bounds for numeric settings. Durations derived from them must stay
// well inside time.Duration.
const (
	maxAttemptSetting    = 1000
	maxWindowMinutes     = 7 * 24 * 60
	maxPasswordMinLength = 128
	maxRememberMeDays    = 365
)

// settingField applies one section/key from an update patch. It returns false
// when the value has the wrong type or is out of range.
type settingField func(s *SecuritySettings, v any) bool

var settingFields = map[string]map[string]settingField{
	"captcha": {
		"enabled":           boolField(func(s *SecuritySettings) *bool { return &s.Captcha.Enabled }),
		"trigger_threshold": intField(0, maxAttemptSetting, func(s *SecuritySettings) *int { return &s.Captcha.TriggerThreshold }),
	},
	"rate_limiting": {
		"enabled":        boolField(func(s *SecuritySettings) *bool { return &s.RateLimiting.Enabled }),
		"max_attempts":   intField(1, maxAttemptSetting, func(s *SecuritySettings) *int { return &s.RateLimiting.MaxAttempts }),
		"window_minutes": intField(1, maxWindowMinutes, func(s *SecuritySettings) *int { return &s.RateLimiting.WindowMinutes }),
	},
	"two_factor": {
		"enabled": boolField(func(s *SecuritySettings) *bool { return &s.TwoFactor.Enabled }),
		"method": func(s *SecuritySettings, v any) bool {
			m, ok := v.(string)
			if !ok {
				return false
			}
			switch m {
			case TwoFactorMethodEmail, TwoFactorMethodSMS, TwoFactorMethodApp, TwoFactorMethodLog:
				s.TwoFactor.Method = m
				return true
			}
			return false
		},
	},
	"password_policy": {
		"min_length":        intField(1, maxPasswordMinLength, func(s *SecuritySettings) *int { return &s.PasswordPolicy.MinLength }),
		"require_special":   boolField(func(s *SecuritySettings) *bool { return &s.PasswordPolicy.RequireSpecial }),
		"require_numbers":   boolField(func(s *SecuritySettings) *bool { return &s.PasswordPolicy.RequireNumbers }),
		"require_uppercase": boolField(func(s *SecuritySettings) *bool { return &s.PasswordPolicy.RequireUppercase }),
	},
	"session": {
		"timeout_minutes":  intField(1, maxWindowMinutes, func(s *SecuritySettings) *int { return &s.Session.TimeoutMinutes }),
		"remember_me_days": intField(1, maxRememberMeDays, func(s *SecuritySettings) *int { return &s.Session.RememberMeDays }),
	},
}

func boolField(ref func(*SecuritySettings) *bool) settingField {
	return func(s *SecuritySettings, v any) bool {
		b, ok := v.(bool)
		if !ok {
			return false
		}
		*ref(s) = b
		return true
	}
}

func intField(min, max int, ref func(*SecuritySettings) *int) settingField {
	return func(s *SecuritySettings, v any) bool {
		n, ok := asInt(v)
		if !ok || n < min || n > max {
			return false
		}
		*ref(s) = n
		return true
	}
}

// asInt accepts integral JSON numbers in any of the forms a decoder produces.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || n > math.MaxInt32 || n < math.MinInt32 {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	}
	return 0, false
}

// Merge applies the known section/key pairs in patch onto a copy of s and
// returns it together with the sorted list of ignored paths. Unknown
// sections, unknown keys and values of the wrong type are ignored.
func (s SecuritySettings) Merge(patch map[string]any) (SecuritySettings, []string) {
	merged := s
	ignored := []string{}

	for section, raw := range patch {
		fields, ok := settingFields[section]
		if !ok {
			ignored = append(ignored, section)
			continue
		}
		values, ok := raw.(map[string]any)
		if !ok {
			ignored = append(ignored, section)
			continue
		}
		for key, v := range values {
			apply, ok := fields[key]
			if !ok || !apply(&merged, v) {
				ignored = append(ignored, section+"."+key)
			}
		}
	}

	sort.Strings(ignored)
	return merged, ignored
}
