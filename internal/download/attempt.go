package download

import "time"

// attemptState tracks a single download attempt through the stall policy.
type attemptState int

const (
	stateStarting attemptState = iota
	stateStreaming
	stateStalledWarning
	stateStalledConfirmed
	stateCompleted
	stateFailed
)

func (s attemptState) String() string {
	switch s {
	case stateStarting:
		return "starting"
	case stateStreaming:
		return "streaming"
	case stateStalledWarning:
		return "stalled-warning"
	case stateStalledConfirmed:
		return "stalled-confirmed"
	case stateCompleted:
		return "completed"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type monitorConfig struct {
	SpeedCheckInterval time.Duration
	MinSpeed           int64
	StallThreshold     int
	// ProgressWindow is how long integer-percent progress may sit still
	// before the stuck-progress fallback kicks in.
	ProgressWindow time.Duration
}

// sample reports what a single observation decided, so the caller can log
// and abort without reaching into monitor internals.
type sample struct {
	SpeedChecked bool
	Speed        float64 // bytes per second, valid when SpeedChecked
	SlowCheck    bool
	StallCount   int
	PercentStep  bool
	Percent      int
	Confirmed    bool
	Elapsed      time.Duration
}

// stallMonitor is the per-attempt state machine. It is fed chunk arrivals
// with explicit timestamps, which keeps the stall policy testable without a
// network or a real clock.
//
// Two independent signals feed one counter: a periodic throughput sample
// below MinSpeed, and integer-percent progress sitting still for longer
// than ProgressWindow. A stall is confirmed only when the expected size is
// known and the file is still incomplete; with an unknown size a
// slow-but-progressing transfer cannot be told apart from a stuck one, so
// low throughput is logged but never aborts.
type stallMonitor struct {
	cfg      monitorConfig
	expected int64 // stall baseline from the tracking store, 0 = unknown
	total    int64 // percent denominator from the response, 0 = unknown

	state          attemptState
	downloaded     int64
	stallCount     int
	started        time.Time
	lastCheck      time.Time
	lastCheckBytes int64
	lastProgress   time.Time
	lastPercent    int
}

func newStallMonitor(cfg monitorConfig, expected, total int64, now time.Time) *stallMonitor {
	return &stallMonitor{
		cfg:          cfg,
		expected:     expected,
		total:        total,
		state:        stateStarting,
		started:      now,
		lastCheck:    now,
		lastProgress: now,
	}
}

// Observe records n freshly written bytes and runs the periodic checks.
func (m *stallMonitor) Observe(n int64, now time.Time) sample {
	if m.state == stateStarting {
		m.state = stateStreaming
	}
	m.downloaded += n
	s := sample{Elapsed: now.Sub(m.started), StallCount: m.stallCount}

	if now.Sub(m.lastCheck) >= m.cfg.SpeedCheckInterval {
		elapsed := now.Sub(m.lastCheck).Seconds()
		s.SpeedChecked = true
		s.Speed = float64(m.downloaded-m.lastCheckBytes) / elapsed
		if s.Speed < float64(m.cfg.MinSpeed) {
			s.SlowCheck = true
			m.bump(&s)
		} else {
			m.stallCount = 0
			if m.state == stateStalledWarning {
				m.state = stateStreaming
			}
		}
		m.lastCheck = now
		m.lastCheckBytes = m.downloaded
		s.StallCount = m.stallCount
	}

	if m.total > 0 {
		percent := int(float64(m.downloaded) / float64(m.total) * 100)
		if percent > m.lastPercent {
			m.lastPercent = percent
			m.lastProgress = now
			s.PercentStep = true
			s.Percent = percent
		} else if now.Sub(m.lastProgress) > m.cfg.ProgressWindow {
			if m.expected > 0 && m.downloaded < m.expected {
				m.bump(&s)
				s.StallCount = m.stallCount
			}
		}
	}
	return s
}

// bump counts one stall signal; confirmation needs a known expected size
// and an incomplete file.
func (m *stallMonitor) bump(s *sample) {
	m.stallCount++
	if m.state == stateStreaming {
		m.state = stateStalledWarning
	}
	if m.stallCount >= m.cfg.StallThreshold && m.expected > 0 && m.downloaded < m.expected {
		m.state = stateStalledConfirmed
		s.Confirmed = true
	}
}

func (m *stallMonitor) Complete() {
	m.state = stateCompleted
}

func (m *stallMonitor) Fail() {
	m.state = stateFailed
}

func (m *stallMonitor) State() attemptState {
	return m.state
}

func (m *stallMonitor) Downloaded() int64 {
	return m.downloaded
}
