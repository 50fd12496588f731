package dispatch

// Config defines dispatch policy settings.
type Config struct {
	// CriticalCandidates is the number of volunteers notified for
	// HIGH/EMERGENCY reports; DefaultCandidates applies otherwise.
	CriticalCandidates int `json:"critical_candidates"`
	DefaultCandidates  int `json:"default_candidates"`

	EmergencyBonus        float64 `json:"emergency_bonus"`
	TransportBonus        float64 `json:"transport_bonus"`
	ResponseBonusMax      float64 `json:"response_bonus_max"`
	ResponseWindowMinutes float64 `json:"response_window_minutes"`
}

// SetDefaults applies the policy defaults.
func (c *Config) SetDefaults() {
	if c.CriticalCandidates == 0 {
		c.CriticalCandidates = 3
	}
	if c.DefaultCandidates == 0 {
		c.DefaultCandidates = 2
	}
	if c.EmergencyBonus == 0 {
		c.EmergencyBonus = 10
	}
	if c.TransportBonus == 0 {
		c.TransportBonus = 5
	}
	if c.ResponseBonusMax == 0 {
		c.ResponseBonusMax = 5
	}
	if c.ResponseWindowMinutes == 0 {
		c.ResponseWindowMinutes = 30
	}
}

// Ranker builds the ranking engine for this policy.
func (c Config) Ranker() RankingEngine {
	return RankingEngine{
		EmergencyBonus:   c.EmergencyBonus,
		TransportBonus:   c.TransportBonus,
		ResponseBonusMax: c.ResponseBonusMax,
		ResponseWindowMn: c.ResponseWindowMinutes,
	}
}

// Limit returns the candidate count for the urgency.
func (c Config) Limit(critical bool) int {
	if critical {
		return c.CriticalCandidates
	}
	return c.DefaultCandidates
}
